package transport

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"jewelry-catalog/internal/domain"
	"jewelry-catalog/internal/imagedata"
	"jewelry-catalog/internal/middleware"
	"jewelry-catalog/internal/repository"
	"jewelry-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// multipartOverhead covers the form fields sent next to the image files
	multipartOverhead = 1 << 20
	jsonOverhead      = 64 << 10
)

// CreateProductRequest represents the admin product form
type CreateProductRequest struct {
	ProductNumber string           `json:"product_number" validate:"required,numeric,len=5"`
	Category      domain.Category  `json:"category" validate:"required,oneof=necklace-set bangles earrings"`
	Price         *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Images        []string         `json:"images" validate:"required,min=1,dive,required,datauri"`
}

// CategoryOption is a selectable category on the admin form
type CategoryOption struct {
	ID    domain.Category `json:"id"`
	Title string          `json:"title"`
}

// ProductFormResponse prefills the admin product form
type ProductFormResponse struct {
	ProductNumber string           `json:"product_number"`
	Categories    []CategoryOption `json:"categories"`
	MaxImages     int              `json:"max_images"`
	MaxImageBytes int64            `json:"max_image_bytes"`
	AllowedTypes  []string         `json:"allowed_types"`
}

// Limits bounds what the admin form accepts
type Limits struct {
	MaxImages     int
	MaxImageBytes int64
}

// CatalogHandler handles HTTP requests for the storefront and the admin form
type CatalogHandler struct {
	catalogService service.CatalogService
	limits         Limits
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, limits Limits, logger *zap.Logger) *CatalogHandler {
	if limits.MaxImages <= 0 {
		limits.MaxImages = 5
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = imagedata.DefaultMaxBytes
	}
	return &CatalogHandler{
		catalogService: catalogService,
		limits:         limits,
		logger:         logger,
	}
}

// RegisterRoutes registers the storefront routes and the admin routes behind adminMiddleware
func (h *CatalogHandler) RegisterRoutes(r chi.Router, adminMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/api/categories", h.ListCategories)
	r.Get("/api/categories/{category}/products", h.ListCategoryProducts)

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productNumber}", h.GetProduct)
		r.Get("/{productNumber}/images/{index}", h.GetProductImage)
	})

	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(adminMiddleware...)
		r.Get("/new", h.NewProductForm)
		r.Post("/", h.CreateProduct)
		r.Post("/upload", h.UploadProduct)
	})
}

// ListCategories returns every category with its title and product count
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalogService.CategorySummaries(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err, "failed to list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summaries)
}

// ListCategoryProducts returns the products of the category in the path
func (h *CatalogHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, domain.Category(chi.URLParam(r, "category")))
}

// ListProducts returns the products of the category given as query parameter
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "category", Message: "This field is required"},
		})
		return
	}
	h.listProducts(w, r, domain.Category(category))
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request, category domain.Category) {
	products, err := h.catalogService.GetProductsByCategory(r.Context(), category)
	if err != nil {
		h.respondWithServiceError(w, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns a single product by its product number
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalogService.GetProduct(r.Context(), chi.URLParam(r, "productNumber"))
	if err != nil {
		h.respondWithServiceError(w, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetProductImage serves the raw bytes of one stored image
func (h *CatalogHandler) GetProductImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "image index must be a non-negative integer")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), chi.URLParam(r, "productNumber"))
	if err != nil {
		h.respondWithServiceError(w, err, "failed to get product")
		return
	}
	if index >= len(product.Images) {
		middleware.RespondWithError(w, http.StatusNotFound, "image not found")
		return
	}

	mime, data, err := imagedata.Decode(product.Images[index])
	if err != nil {
		h.logger.Error("Stored image is not a valid data url",
			zap.String("product_number", product.ProductNumber),
			zap.Int("index", index),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// NewProductForm returns a fresh product number and the form limits
func (h *CatalogHandler) NewProductForm(w http.ResponseWriter, r *http.Request) {
	categories := domain.Categories()
	options := make([]CategoryOption, 0, len(categories))
	for _, c := range categories {
		options = append(options, CategoryOption{ID: c, Title: c.Title()})
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductFormResponse{
		ProductNumber: service.GenerateProductNumber(),
		Categories:    options,
		MaxImages:     h.limits.MaxImages,
		MaxImageBytes: h.limits.MaxImageBytes,
		AllowedTypes:  imagedata.AllowedTypes(),
	})
}

// CreateProduct handles a JSON product form whose images are already data URLs
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(h.limits.MaxImages)*imagedata.MaxURLLength(h.limits.MaxImageBytes) + jsonOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req CreateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "request body exceeds size limit")
			return
		}

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Images) > h.limits.MaxImages {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{h.tooManyImages()})
		return
	}

	var problems []middleware.ValidationError
	for i, url := range req.Images {
		if err := imagedata.Validate(url, h.limits.MaxImageBytes); err != nil {
			problems = append(problems, middleware.ValidationError{
				Field:   fmt.Sprintf("images[%d]", i),
				Message: imageMessage(fmt.Sprintf("Image %d", i+1), err),
			})
		}
	}
	if len(problems) > 0 {
		h.logger.Debug("Product images rejected", zap.Int("problems", len(problems)))
		middleware.RespondWithValidationErrors(w, problems)
		return
	}

	h.create(w, r, req)
}

// UploadProduct handles a multipart product form carrying raw image files
func (h *CatalogHandler) UploadProduct(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(h.limits.MaxImages)*h.limits.MaxImageBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := CreateProductRequest{
		ProductNumber: r.FormValue("product_number"),
		Category:      domain.Category(r.FormValue("category")),
	}

	var problems []middleware.ValidationError

	if raw := r.FormValue("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			problems = append(problems, middleware.ValidationError{Field: "price", Message: "Must be a number"})
		} else {
			req.Price = &price
		}
	}

	files := r.MultipartForm.File["images"]
	if len(files) > h.limits.MaxImages {
		problems = append(problems, h.tooManyImages())
	} else {
		for i, fh := range files {
			url, err := h.encodeUpload(fh)
			if err != nil {
				problems = append(problems, middleware.ValidationError{
					Field:   fmt.Sprintf("images[%d]", i),
					Message: imageMessage(fh.Filename, err),
				})
				continue
			}
			req.Images = append(req.Images, url)
		}
	}

	if err := middleware.ValidateRequest(&req); err != nil {
		for _, v := range middleware.FormatValidationErrors(err) {
			if v.Field == "price" && req.Price == nil && hasField(problems, "price") {
				continue
			}
			if v.Field == "images" && len(files) > 0 {
				continue
			}
			problems = append(problems, v)
		}
	}

	if len(problems) > 0 {
		h.logger.Debug("Product upload rejected", zap.Int("problems", len(problems)))
		middleware.RespondWithValidationErrors(w, problems)
		return
	}

	h.create(w, r, req)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request, req CreateProductRequest) {
	product, err := h.catalogService.CreateProduct(r.Context(), domain.NewProduct{
		ProductNumber: req.ProductNumber,
		Category:      req.Category,
		Price:         *req.Price,
		Images:        req.Images,
	})
	if err != nil {
		h.respondWithServiceError(w, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *CatalogHandler) encodeUpload(fh *multipart.FileHeader) (string, error) {
	if fh.Size > h.limits.MaxImageBytes {
		return "", imagedata.ErrImageTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return imagedata.EncodeReader(f, h.limits.MaxImageBytes)
}

func (h *CatalogHandler) tooManyImages() middleware.ValidationError {
	return middleware.ValidationError{
		Field:   "images",
		Message: fmt.Sprintf("At most %d allowed", h.limits.MaxImages),
	}
}

func (h *CatalogHandler) respondWithServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrDuplicateProductNumber):
		middleware.RespondWithError(w, http.StatusConflict, "product with this number already exists")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrInvalidProduct):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(message, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, message)
	}
}

func imageMessage(name string, err error) string {
	switch {
	case errors.Is(err, imagedata.ErrImageTooLarge):
		return name + " exceeds the size limit"
	case errors.Is(err, imagedata.ErrUnsupportedType):
		return name + " is not a JPEG, PNG, GIF or WebP image"
	case errors.Is(err, imagedata.ErrEmptyImage):
		return name + " is empty"
	case errors.Is(err, imagedata.ErrInvalidDataURL):
		return name + " is not a base64 data URL"
	default:
		return name + " could not be read"
	}
}

func hasField(errs []middleware.ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}
