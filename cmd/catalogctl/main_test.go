package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jewelry-catalog/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// run executes one catalogctl invocation and releases its resources like main does
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	a := &app{}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func testCatalog(t *testing.T) (dbPath, image string) {
	t.Helper()
	dir := t.TempDir()
	image = filepath.Join(dir, "bangle.png")
	require.NoError(t, os.WriteFile(image, pngImage, 0o600))
	return filepath.Join(dir, "catalog.db"), image
}

func TestMigrateAndStatus(t *testing.T) {
	dbPath, _ := testCatalog(t)

	out, err := run(t, "", "--db-path", dbPath, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 2 (sqlite)\n", out)

	out, err = run(t, "", "--db-path", dbPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "00001_create_catalog_tables.sql")
	assert.Contains(t, out, "00002_add_catalog_indexes.sql")
	assert.NotContains(t, out, "pending")
}

func TestAddListAndShow(t *testing.T) {
	dbPath, image := testCatalog(t)

	out, err := run(t, "", "--db-path", dbPath, "add", "--number", "12345", "--category", "bangles", "--price", "49.9", image, image)
	require.NoError(t, err)
	assert.Equal(t, "added 12345 (Bangles, 49.90) with 2 image(s)\n", out)

	out, err = run(t, "", "--db-path", dbPath, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"necklace-set", "Necklace", "Sets", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"bangles", "Bangles", "1"}, strings.Fields(lines[2]))

	out, err = run(t, "", "--db-path", dbPath, "list", "-c", "bangles")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"12345", "bangles", "49.90", "2"}, strings.Fields(lines[1])[:4])

	out, err = run(t, "", "--db-path", dbPath, "show", "12345")
	require.NoError(t, err)
	assert.Contains(t, out, "category: Bangles (bangles)")
	assert.Contains(t, out, "image 0: image/png, 29 bytes")
	assert.Contains(t, out, "image 1: image/png, 29 bytes")
}

func TestAddRejectsInvalidProducts(t *testing.T) {
	dbPath, image := testCatalog(t)

	_, err := run(t, "", "--db-path", dbPath, "add", "--number", "12345", "--category", "rings", "--price", "10", image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid product: category:")

	_, err = run(t, "", "--db-path", dbPath, "add", "--number", "12345", "--category", "earrings", image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price:")

	_, err = run(t, "", "--db-path", dbPath, "add", "--category", "earrings", "--price", "abc", image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid price "abc"`)

	notImage := filepath.Join(filepath.Dir(image), "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("plain text"), 0o600))
	_, err = run(t, "", "--db-path", dbPath, "add", "--category", "earrings", "--price", "10", notImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")

	out, err := run(t, "", "--db-path", dbPath, "list", "-c", "earrings")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1, "nothing may be stored")
}

func TestAddRejectsDuplicateNumber(t *testing.T) {
	dbPath, image := testCatalog(t)

	_, err := run(t, "", "--db-path", dbPath, "add", "--number", "55555", "--category", "earrings", "--price", "5", image)
	require.NoError(t, err)
	_, err = run(t, "", "--db-path", dbPath, "add", "--number", "55555", "--category", "bangles", "--price", "6", image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestShowUnknownProduct(t *testing.T) {
	dbPath, _ := testCatalog(t)

	_, err := run(t, "", "--db-path", dbPath, "show", "99999")
	require.Error(t, err)
}

func TestBrowseShowsNewestCategory(t *testing.T) {
	dbPath, image := testCatalog(t)

	_, err := run(t, "", "--db-path", dbPath, "add", "--number", "11111", "--category", "earrings", "--price", "5", image)
	require.NoError(t, err)
	_, err = run(t, "", "--db-path", dbPath, "add", "--number", "22222", "--category", "bangles", "--price", "7", image)
	require.NoError(t, err)

	out, err := run(t, "earrings\n\nbangles\n", "--db-path", dbPath, "browse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Bangles: 1 product(s)\n"), out)
	assert.Contains(t, out, "22222")
	assert.NotContains(t, out, "11111")

	out, err = run(t, "", "--db-path", dbPath, "browse")
	require.NoError(t, err)
	assert.Equal(t, "no category browsed\n", out)
}

func TestResetRequiresConfirmation(t *testing.T) {
	dbPath, image := testCatalog(t)

	_, err := run(t, "", "--db-path", dbPath, "add", "--number", "12345", "--category", "bangles", "--price", "1", image)
	require.NoError(t, err)

	_, err = run(t, "", "--db-path", dbPath, "reset")
	require.EqualError(t, err, "refusing to delete the catalog without --yes")

	out, err := run(t, "", "--db-path", dbPath, "reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "catalog cleared\n", out)

	out, err = run(t, "", "--db-path", dbPath, "list", "-c", "bangles")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestTokenFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "catalog.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ADMIN_JWT_SECRET=cli-secret\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ADMIN_JWT_SECRET") })

	out, err := run(t, "", "--env-file", envFile, "token", "--subject", "shop-owner", "--ttl", "1h")
	require.NoError(t, err)

	claims := &middleware.AdminClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(token *jwt.Token) (any, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "shop-owner", claims.Subject)
	assert.Equal(t, middleware.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")

	_, err := run(t, "", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret is not configured")
}
