package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aleph/backend/internal/authz"
	"aleph/backend/internal/model"
	"aleph/backend/internal/search"
	"aleph/backend/internal/store"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

// Documents is the part of the store the data routes read from.
type Documents interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// Options configures a Server.
type Options struct {
	AppURL     string
	Production bool
	Limits     search.Limits
}

// Server owns the HTTP routes of the API.
type Server struct {
	opts     Options
	docs     Documents
	searcher search.Searcher
	authz    *authz.Authz
	router   *gin.Engine
	logger   *zap.Logger
}

func NewServer(opts Options, docs Documents, searcher search.Searcher, az *authz.Authz) *Server {
	opts.AppURL = strings.TrimRight(opts.AppURL, "/")
	s := &Server{
		opts:     opts,
		docs:     docs,
		searcher: searcher,
		authz:    az,
		logger:   logger.For("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	if s.opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/1")
	api.Use(s.authz.Middleware())
	{
		api.GET("/query", s.query)
		api.GET("/archive/:collection/:package_id", s.archive)
		api.GET("/manifest/:collection/:package_id", s.manifest)
	}

	return router
}

var routePaths = map[string]string{
	search.RouteArchive:  "/api/1/archive/%s/%s",
	search.RouteManifest: "/api/1/manifest/%s/%s",
}

// URLFor builds the absolute URL of a named data route.
func (s *Server) URLFor(route string, params map[string]string) string {
	pattern, ok := routePaths[route]
	if !ok {
		return ""
	}
	return s.opts.AppURL + fmt.Sprintf(pattern,
		url.PathEscape(params["collection"]),
		url.PathEscape(params["package_id"]),
	)
}

func (s *Server) query(c *gin.Context) {
	ctx := c.Request.Context()

	authorized, err := s.authz.RequestCollections(c, store.ActionRead)
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "authz_failed", errors.New("could not resolve collections"))
		return
	}

	q, err := search.DocumentQuery(c.Request.URL.Query(), authorized, s.opts.Limits)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}

	res, err := s.searcher.Search(ctx, q)
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "search_failed", errors.New("search failed"))
		return
	}

	self, _ := url.Parse(s.opts.AppURL + c.Request.URL.RequestURI())
	RespondOK(c, search.NewPager(res, q, self, search.URLConverter(s.URLFor)))
}

func (s *Server) manifest(c *gin.Context) {
	doc, ok := s.readableDocument(c)
	if !ok {
		return
	}
	params := map[string]string{"collection": doc.Collection.ForeignID, "package_id": doc.ID}
	RespondOK(c, gin.H{
		"id":            doc.ID,
		"collection":    doc.Collection.ForeignID,
		"collection_id": doc.CollectionID,
		"title":         doc.Title,
		"file_name":     doc.FileName,
		"mime_type":     doc.MimeType,
		"summary":       doc.Summary,
		"created_at":    doc.CreatedAt,
		"updated_at":    doc.UpdatedAt,
		"archive_url":   s.URLFor(search.RouteArchive, params),
	})
}

func (s *Server) archive(c *gin.Context) {
	doc, ok := s.readableDocument(c)
	if !ok {
		return
	}
	name := doc.FileName
	if name == "" {
		name = doc.ID + ".txt"
	}
	mime := doc.MimeType
	if mime == "" {
		mime = "text/plain; charset=utf-8"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, mime, []byte(doc.Text))
}

// readableDocument loads the document named by the route and checks that the
// caller may read its collection. Anything else is reported as not found.
func (s *Server) readableDocument(c *gin.Context) (*model.Document, bool) {
	notFound := apperrors.NewNotFound("document", c.Param("package_id"))

	doc, err := s.docs.GetDocument(c.Request.Context(), c.Param("package_id"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "not_found", notFound)
			return nil, false
		}
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "store_failed", errors.New("could not load document"))
		return nil, false
	}
	if doc.Collection.ForeignID != c.Param("collection") {
		RespondError(c, http.StatusNotFound, "not_found", notFound)
		return nil, false
	}

	authorized, err := s.authz.RequestCollections(c, store.ActionRead)
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "authz_failed", errors.New("could not resolve collections"))
		return nil, false
	}
	if !slices.Contains(authorized, doc.CollectionID) {
		RespondError(c, http.StatusNotFound, "not_found", notFound)
		return nil, false
	}
	return doc, true
}
