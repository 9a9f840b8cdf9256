// Package server exposes the reader operations over HTTP with gin.
//
// Authentication is handled in front of this server: the caller's identity
// arrives in the X-User-ID header and requests without it are rejected.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/extract"
	"github.com/langbuddy/langbuddy/pkg/keyset"
	"github.com/langbuddy/langbuddy/pkg/reader"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

const userKey = "userID"

// Options configures a Server.
type Options struct {
	Debug bool
	// DefaultLimit and MaxLimit bound word bank pages. Zero means the
	// keyset defaults.
	DefaultLimit int
	MaxLimit     int
	Registry     *prometheus.Registry
	Logger       *log.Logger
}

type Server struct {
	reader  *reader.Service
	metrics *Metrics
	engine  *gin.Engine
	opts    Options
}

// New builds the gin engine and registers every route.
func New(svc *reader.Service, opts Options) (*Server, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = keyset.DefaultLimit
	}
	if opts.MaxLimit <= 0 || opts.MaxLimit > keyset.MaxLimit {
		opts.MaxLimit = keyset.MaxLimit
	}
	metrics, err := NewMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}
	if svc.Dictionary != nil {
		cache := svc.Dictionary
		if err := metrics.registerGauge("dictionary_cached_users", "User dictionary snapshots held in memory.",
			func() float64 { return float64(cache.Len()) }); err != nil {
			return nil, err
		}
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(metrics.Middleware())

	s := &Server{reader: svc, metrics: metrics, engine: engine, opts: opts}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api", requireUser())
	api.GET("/wordbank", s.wordBank)
	api.POST("/words/quiz", s.answerQuiz)
	api.GET("/articles", s.listArticles)
	api.POST("/articles", s.addArticle)
	api.GET("/articles/:id", s.articleView)
	api.POST("/articles/:id/analyze", s.analyzeArticle)
	api.POST("/articles/:id/complete", s.completeArticle)
	api.GET("/settings", s.getSettings)
	api.PATCH("/settings", s.updateSettings)
	api.POST("/custom-words", s.addCustomWord)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.reader.Wait()
	return nil
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userKey)
}

func articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return 0, false
	}
	return id, true
}

// fail maps service errors onto HTTP statuses. Another user's article is
// reported as not found.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, reader.ErrForbidden):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, vocab.ErrInvalidTier), errors.Is(err, extract.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if s.opts.Logger != nil {
			s.opts.Logger.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) wordBank(c *gin.Context) {
	limit := s.opts.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit = min(keyset.ParseLimit(raw), s.opts.MaxLimit)
	}
	q := db.WordQuery{Limit: limit, After: keyset.DecodePtr(c.Query("cursor"))}
	if raw := c.Query("tier"); raw != "" {
		// A non-numeric tier is ignored; an out-of-range one matches nothing.
		if n, err := strconv.Atoi(raw); err == nil {
			tier := vocab.Tier(n)
			q.Tier = &tier
		}
	}
	page, err := s.reader.WordBank(c.Request.Context(), userID(c), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type quizRequest struct {
	ArticleID int64 `json:"articleId"`
	WordID    int64 `json:"wordId" binding:"required"`
	Correct   *bool `json:"correct" binding:"required"`
}

func (s *Server) answerQuiz(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	res, err := s.reader.AnswerQuiz(c.Request.Context(), userID(c), req.ArticleID, req.WordID, *req.Correct)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.observeQuiz(res.Correct)
	c.JSON(http.StatusOK, res)
}

func (s *Server) listArticles(c *gin.Context) {
	articles, err := s.reader.ListArticles(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if articles == nil {
		articles = []db.Article{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

type addArticleRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) addArticle(c *gin.Context) {
	var req addArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL required"})
		return
	}
	id, err := s.reader.AddArticle(c.Request.Context(), userID(c), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.articles.Inc()
	c.JSON(http.StatusAccepted, gin.H{"articleId": id})
}

func (s *Server) articleView(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	view, err := s.reader.ArticleView(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) analyzeArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	matches, err := s.reader.AnalyzeArticle(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if matches == nil {
		matches = []vocab.Match{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

type completeRequest struct {
	ComprehensionScore int           `json:"comprehensionScore"`
	AnsweredQuestions  []db.Question `json:"answeredQuestions"`
}

func (s *Server) completeArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	res, err := s.reader.CompleteArticle(c.Request.Context(), userID(c), id, req.ComprehensionScore, req.AnsweredQuestions)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getSettings(c *gin.Context) {
	tier, err := s.reader.Tier(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": tier})
}

type settingsRequest struct {
	Tier vocab.Tier `json:"tier" binding:"required"`
}

func (s *Server) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := s.reader.SetTier(c.Request.Context(), userID(c), req.Tier); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type customWordRequest struct {
	BaseForm string     `json:"baseForm" binding:"required"`
	Tier     vocab.Tier `json:"tier" binding:"required"`
	Meaning  string     `json:"meaning"`
}

func (s *Server) addCustomWord(c *gin.Context) {
	var req customWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	id, err := s.reader.AddCustomWord(c.Request.Context(), db.CustomWord{
		UserID:   userID(c),
		BaseForm: req.BaseForm,
		Tier:     req.Tier,
		Meaning:  req.Meaning,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
