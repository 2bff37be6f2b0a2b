package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/newsword/newsword/pkg/db"
	"github.com/newsword/newsword/pkg/scraper"
	"github.com/newsword/newsword/pkg/vocab"
)

type errorResponse struct {
	Error string `json:"error"`
}

type crawlResponse struct {
	Message    string `json:"message"`
	SavedCount int    `json:"savedCount"`
}

type crawlRunRequest struct {
	Categories []string `json:"categories"`
}

type importWordsRequest struct {
	Words string `json:"words"`
}

type importResponse struct {
	WordbookID int64             `json:"wordbookId"`
	SavedWords []vocab.SavedWord `json:"savedWords"`
}

func respondError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

var errUnavailable = errors.New("service not configured")

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) crawlCategory(c *gin.Context) {
	site, name := c.Param("site"), c.Param("category")
	sc, ok := s.scrapers[site]
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("unknown site %q", site))
		return
	}
	res, err := sc.Scrape(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownCategory) {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, crawlResponse{
		Message:    fmt.Sprintf("%s %s crawl finished, %d articles saved", site, res.Category, res.SavedCount),
		SavedCount: res.SavedCount,
	})
}

func (s *Server) crawlRun(c *gin.Context) {
	if s.crawler == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	var req crawlRunRequest
	// an empty body crawls every category
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
	}
	c.JSON(http.StatusOK, s.crawler.Run(c.Request.Context(), req.Categories))
}

func (s *Server) importWords(c *gin.Context) {
	if s.importer == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req importWordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if strings.TrimSpace(req.Words) == "" {
		respondError(c, http.StatusBadRequest, errors.New("words is required"))
		return
	}
	res, err := s.importer.ImportWords(c.Request.Context(), userID, req.Words)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, toImportResponse(res))
}

type wordView struct {
	ID         int64  `json:"id"`
	Name       string `json:"wordName"`
	Definition string `json:"definition"`
	Synonyms   string `json:"synonyms"`
	Antonyms   string `json:"antonyms"`
	Category   string `json:"category"`
	Example    string `json:"example"`
	ShoulderNo int    `json:"shoulderNo"`
	TargetCode int64  `json:"targetCode"`
	SenseNo    int    `json:"senseNo"`
}

type wordbookResponse struct {
	WordbookID int64      `json:"wordbookId"`
	Words      []wordView `json:"words"`
}

func (s *Server) wordbook(c *gin.Context) {
	if s.wordbooks == nil || s.words == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	wbID, err := s.wordbooks.FindByUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, fmt.Errorf("user %d has no wordbook", userID))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	ids, err := s.wordbooks.WordIDs(ctx, wbID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	resp := wordbookResponse{WordbookID: wbID, Words: make([]wordView, 0, len(ids))}
	for _, id := range ids {
		w, err := s.words.FindByID(ctx, id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		if w.DeletedAt != nil {
			continue
		}
		resp.Words = append(resp.Words, wordView{
			ID: w.ID, Name: w.Name, Definition: w.Definition, Synonyms: w.Synonyms, Antonyms: w.Antonyms,
			Category: w.Category, Example: w.Example, ShoulderNo: w.ShoulderNo, TargetCode: w.TargetCode, SenseNo: w.SenseNo,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) importActivity(c *gin.Context) {
	if s.importer == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.importer.ImportActivity(c.Request.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, vocab.ErrNotUnknownWord):
		respondError(c, http.StatusBadRequest, err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, toImportResponse(res))
	}
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

func toImportResponse(res vocab.ImportResult) importResponse {
	saved := res.SavedWords
	if saved == nil {
		saved = []vocab.SavedWord{}
	}
	return importResponse{WordbookID: res.WordbookID, SavedWords: saved}
}
