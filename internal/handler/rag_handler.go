package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/service"
)

const (
	uploadField           = "files"
	DefaultMaxUploadBytes = int64(32 << 20)
)

type RAGHandler struct {
	rag            *service.RAGService
	maxUploadBytes int64
}

func NewRAGHandler(rag *service.RAGService, maxUploadBytes int64) *RAGHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &RAGHandler{rag: rag, maxUploadBytes: maxUploadBytes}
}

type chatRequest struct {
	Query *string         `json:"query"`
	K     json.RawMessage `json:"k"`
}

// topK returns the requested k, or DefaultTopK when the field is absent.
// An explicit null is rejected.
func (r chatRequest) topK() (int, error) {
	if len(r.K) == 0 {
		return service.DefaultTopK, nil
	}
	if bytes.Equal(bytes.TrimSpace(r.K), []byte("null")) {
		return 0, fmt.Errorf("k must be an integer")
	}
	var k int
	if err := json.Unmarshal(r.K, &k); err != nil {
		return 0, fmt.Errorf("k must be an integer")
	}
	return k, nil
}

func (h *RAGHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *RAGHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == nil {
		writeError(c, http.StatusBadRequest, "query is required")
		return
	}
	k, err := req.topK()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.rag.Answer(c.Request.Context(), *req.Query, k)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalid) {
			writeError(c, http.StatusBadRequest, "k must not be negative")
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RAGHandler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		handleError(c, fmt.Errorf("%w: upload exceeds %s", appErr.ErrTooLarge, formatUploadLimit(h.maxUploadBytes)))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleError(c, fmt.Errorf("%w: upload exceeds %s", appErr.ErrTooLarge, formatUploadLimit(h.maxUploadBytes)))
			return
		}
		writeError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := form.File[uploadField]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, toUploadFile(fh))
	}
	stats, err := h.rag.Upload(c.Request.Context(), files)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *RAGHandler) Ingest(c *gin.Context) {
	stats, err := h.rag.IngestDataDir(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func toUploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// formatUploadLimit renders a byte limit in whole megabytes, rounding up to 1MB.
func formatUploadLimit(limit int64) string {
	if limit <= 0 {
		return "0MB"
	}
	mb := limit >> 20
	if mb <= 0 {
		mb = 1
	}
	return strconv.FormatInt(mb, 10) + "MB"
}
