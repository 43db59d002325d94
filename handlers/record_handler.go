package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/remote"
	"lexcase-backend/repository"
	"lexcase-backend/storage"
)

const maxRecordBytes = 16 << 20

// RecordRepository stores the collections served by RecordHandler
type RecordRepository interface {
	Get(ctx context.Context, tenant, key string) (*repository.StoredRecord, error)
	Put(ctx context.Context, rec *repository.StoredRecord) error
	Delete(ctx context.Context, tenant, key string) error
}

// RecordHandler serves the remote record API
type RecordHandler struct {
	records RecordRepository
	logger  *zap.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records RecordRepository, l *zap.Logger) *RecordHandler {
	return &RecordHandler{
		records: records,
		logger:  logger.OrNop(l).With(zap.String("handler", "records")),
	}
}

// keyFunc maps a request to the record key it addresses
type keyFunc func(c *gin.Context) storage.Key

// Register adds the record routes to r
func (h *RecordHandler) Register(r gin.IRoutes) {
	routes := []struct {
		path string
		key  keyFunc
	}{
		{"/cases", func(*gin.Context) storage.Key { return storage.CasesKey() }},
		{"/documents", func(*gin.Context) storage.Key { return storage.DocumentsKey() }},
		{"/cases/:caseId/messages", func(c *gin.Context) storage.Key {
			return storage.ChatKey(models.NormalizeCaseID(c.Param("caseId")))
		}},
		{"/cases/:caseId/sessions", func(c *gin.Context) storage.Key {
			return storage.SessionIndexKey(models.NormalizeCaseID(c.Param("caseId")))
		}},
		{"/cases/:caseId/sessions/:sessionId/messages", func(c *gin.Context) storage.Key {
			return storage.SessionKey(models.NormalizeCaseID(c.Param("caseId")), c.Param("sessionId"))
		}},
	}

	for _, route := range routes {
		r.GET(route.path, h.getRecord(route.key))
		r.PUT(route.path, h.putRecord(route.key))
		r.DELETE(route.path, h.deleteRecord(route.key))
	}
}

func (h *RecordHandler) getRecord(key keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(remote.TenantHeader)
		k, ok := recordKey(c, key)
		if !ok {
			return
		}

		rec, err := h.records.Get(c.Request.Context(), tenant, k)
		if errors.Is(err, repository.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Record not found")
			return
		}
		if err != nil {
			h.logger.Error("failed to read record", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "READ_FAILED", "Failed to read record")
			return
		}

		c.Header(remote.RevisionHeader, strconv.FormatInt(rec.Revision, 10))
		c.Header(remote.UpdatedAtHeader, rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
		c.Data(http.StatusOK, "application/json", rec.Data)
	}
}

func (h *RecordHandler) putRecord(key keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(remote.TenantHeader)
		k, ok := recordKey(c, key)
		if !ok {
			return
		}

		revision, err := strconv.ParseInt(c.GetHeader(remote.RevisionHeader), 10, 64)
		if err != nil || revision < 0 {
			respondError(c, http.StatusBadRequest, "INVALID_REVISION", "Missing or invalid "+remote.RevisionHeader+" header")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBytes))
		if err != nil {
			respondError(c, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Record body too large")
			return
		}
		if !isJSONArray(body) {
			respondError(c, http.StatusBadRequest, "INVALID_BODY", "Record body must be a JSON array")
			return
		}

		rec := &repository.StoredRecord{Tenant: tenant, Key: k, Revision: revision, Data: body}
		err = h.records.Put(c.Request.Context(), rec)
		if errors.Is(err, repository.ErrStaleRevision) {
			respondError(c, http.StatusConflict, "STALE_REVISION", "A newer revision of this record exists")
			return
		}
		if err != nil {
			h.logger.Error("failed to store record", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "WRITE_FAILED", "Failed to store record")
			return
		}

		c.Header(remote.RevisionHeader, strconv.FormatInt(rec.Revision, 10))
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"key":        rec.Key,
				"revision":   rec.Revision,
				"updated_at": rec.UpdatedAt,
			},
		})
	}
}

func (h *RecordHandler) deleteRecord(key keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(remote.TenantHeader)
		k, ok := recordKey(c, key)
		if !ok {
			return
		}

		if err := h.records.Delete(c.Request.Context(), tenant, k); err != nil {
			h.logger.Error("failed to delete record", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete record")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// recordKey resolves the request's key, rejecting ids that would alias
// another record
func recordKey(c *gin.Context, key keyFunc) (string, bool) {
	k := key(c)
	if !k.Valid() {
		respondError(c, http.StatusBadRequest, "INVALID_KEY", "Case and session ids must not contain "+strconv.Quote(storage.KeySeparator))
		return "", false
	}
	return k.String(), true
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
