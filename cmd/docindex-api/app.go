package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ledgerlens/docindex/internal/cache"
	"github.com/ledgerlens/docindex/internal/config"
	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/index"
	"github.com/ledgerlens/docindex/internal/observability"
	"github.com/ledgerlens/docindex/internal/ocr"
	"github.com/ledgerlens/docindex/internal/pipeline"
	"github.com/ledgerlens/docindex/internal/search"
)

// app holds the long-lived service dependencies. The pipeline processes
// one document at a time, so uploads are serialized behind procMu.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	pipeline *pipeline.Pipeline
	idx      *index.Index
	searcher *search.Service
	cacheCli cache.Client

	procMu sync.Mutex
}

func newApp(cfg *config.Config, logger *observability.Logger) (*app, error) {
	var embedder embedding.Embedder
	if os.Getenv("DOCINDEX_MOCK_EMBEDDER") == "1" {
		embedder = embedding.NewMockClient(cfg.Embedding.Dimension)
	} else {
		client, err := embedding.NewClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		embedder = client
	}

	var cacheCli cache.Client
	if cfg.Cache.Driver == "redis" {
		redisCli, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory cache")
			cacheCli = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		} else {
			cacheCli = redisCli
		}
	} else {
		cacheCli = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	idx := index.New(cfg.Index.Dimension)
	if blob, err := os.ReadFile(cfg.Index.Path); err == nil {
		if !idx.Load(blob) {
			logger.Warn().Str("path", cfg.Index.Path).Msg("index file malformed, starting empty")
		}
	}

	p := pipeline.NewPipeline(pipeline.Config{
		MaxFileSizeBytes:   cfg.Pipeline.MaxFileSizeBytes,
		MinTextForNoOCR:    cfg.Pipeline.MinTextForNoOCR,
		ShortPageThreshold: cfg.Pipeline.ShortPageThreshold,
		ThumbnailMaxSide:   cfg.Pipeline.ThumbnailMaxSide,
		OCRDiscount:        cfg.Pipeline.OCRDiscount,
		NoEntitiesFloor:    cfg.Pipeline.NoEntitiesFloor,
		OCR: ocr.Config{
			Binary:        cfg.OCR.Binary,
			Language:      cfg.OCR.Language,
			DPI:           cfg.OCR.DPI,
			PSM:           cfg.OCR.PSM,
			TessdataDir:   cfg.OCR.TessdataDir,
			TSVConfidence: cfg.OCR.TSVConfidence,
		},
	}, embedder, logger)

	return &app{
		cfg:      cfg,
		logger:   logger.WithComponent("api"),
		pipeline: p,
		idx:      idx,
		searcher: search.NewService(embedder, idx, search.Config{Cache: cacheCli, CacheTTL: cfg.Cache.TTL}, logger),
		cacheCli: cacheCli,
	}, nil
}

func (a *app) close() {
	a.pipeline.Terminate()
	_ = a.cacheCli.Close()
}

func (a *app) saveIndex() error {
	blob, err := a.idx.Save()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.cfg.Index.Path), ".docindex-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.cfg.Index.Path)
}

// documentDTO is the upload response. Raw text and embeddings stay
// server-side.
type documentDTO struct {
	ID          string  `json:"id"`
	Vendor      string  `json:"vendor,omitempty"`
	Date        string  `json:"date,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	OCRUsed     bool    `json:"ocrUsed"`
	PageCount   int     `json:"pageCount,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	DurationMs  float64 `json:"durationMs"`
}

func newDocumentDTO(doc *domain.ProcessedDocument) documentDTO {
	dto := documentDTO{
		ID:          doc.ID.String(),
		Currency:    doc.Entities.Currency,
		Description: doc.Entities.Description,
		Confidence:  doc.Confidence,
		OCRUsed:     doc.OCRUsed,
		PageCount:   doc.FileMetadata.PageCount,
		Thumbnail:   doc.ThumbnailDataURL,
		DurationMs:  doc.ProcessingTimeMs,
	}
	if doc.Entities.Vendor != nil {
		dto.Vendor = doc.Entities.Vendor.Value
	}
	if doc.Entities.Date != nil {
		dto.Date = doc.Entities.Date.Value
	}
	if doc.Entities.Amount != nil {
		dto.Amount = doc.Entities.Amount.Value
	}
	return dto
}

func (a *app) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(int64(a.cfg.Pipeline.MaxFileSizeBytes)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// The pipeline reads from disk, so spool the upload to a temp file
	// with the original extension preserved for type sniffing.
	tmpPath, err := spoolUpload(file, header.Filename)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to spool upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmpPath)

	a.procMu.Lock()
	doc, err := a.pipeline.ProcessDocument(r.Context(), tmpPath, pipeline.Options{})
	a.procMu.Unlock()
	if err != nil {
		de := domain.AsDomainError(err)
		status := http.StatusUnprocessableEntity
		if de.Code() == string(domain.ErrorTypeValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]interface{}{
			"code":        de.Code(),
			"message":     de.Message,
			"recoverable": de.Recoverable(),
		})
		return
	}

	if len(doc.Embedding) > 0 {
		if err := a.idx.Add(doc.ID.String(), doc.Embedding, apiIndexMetadata(doc)); err != nil {
			a.logger.Error().Err(err).Str("file_id", doc.ID.String()).Msg("Failed to index document")
			writeError(w, http.StatusInternalServerError, "failed to index document")
			return
		}
		if err := a.saveIndex(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to persist index")
		}
	}

	writeJSON(w, http.StatusCreated, newDocumentDTO(doc))
}

type searchResultDTO struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

func (a *app) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	k := 5
	if v := r.URL.Query().Get("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = parsed
	}

	var filter index.FilterFunc
	if currency := strings.ToUpper(r.URL.Query().Get("currency")); currency != "" {
		filter = func(id string, metadata map[string]string) bool {
			return metadata["currency"] == currency
		}
	}

	var (
		results []index.Result
		err     error
	)
	if filter != nil {
		results, err = a.searcher.QueryWithFilter(r.Context(), q, filter, k)
	} else {
		results, err = a.searcher.Query(r.Context(), q, k)
	}
	if err != nil {
		a.logger.Error().Err(err).Str("query", q).Msg("Search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	dtos := make([]searchResultDTO, 0, len(results))
	for _, res := range results {
		dtos = append(dtos, searchResultDTO{ID: res.ID, Score: res.Score, Metadata: res.Metadata})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": dtos})
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := a.idx.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vectorCount":    stats.VectorCount,
		"dimensions":     stats.Dimensions,
		"indexSizeBytes": stats.IndexSizeBytes,
		"lastUpdated":    stats.LastUpdated,
	})
}

func apiIndexMetadata(doc *domain.ProcessedDocument) map[string]string {
	meta := map[string]string{
		"file_name": doc.FileMetadata.OriginalName,
		"currency":  doc.Entities.Currency,
		"ocr_used":  strconv.FormatBool(doc.OCRUsed),
	}
	if doc.Entities.Date != nil {
		meta["date"] = doc.Entities.Date.Value
	}
	if doc.Entities.Amount != nil {
		meta["amount"] = strconv.FormatFloat(doc.Entities.Amount.Value, 'f', 2, 64)
	}
	if doc.Entities.Vendor != nil {
		meta["vendor"] = doc.Entities.Vendor.Value
	}
	return meta
}

func spoolUpload(src io.Reader, originalName string) (string, error) {
	ext := filepath.Ext(originalName)
	tmp, err := os.CreateTemp("", "docindex-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
