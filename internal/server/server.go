// Package server terminates the HTTP transport: it resolves sessions,
// accepts tool invocations, and relays protocol events to clients over
// server-sent events or as one buffered response.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"

	"github.com/iksnae/tablestream/internal"
	"github.com/iksnae/tablestream/internal/stream"
)

// sessionHeader carries the opaque session id on requests and
// responses
const sessionHeader = "Mcp-Session-Id"

// Server is the HTTP front end over the query pipeline
type Server struct {
	cfg      *internal.Config
	store    *internal.Store
	executor *internal.Executor
	registry *internal.Registry
	workers  *ants.Pool
	engine   *gin.Engine
	httpSrv  *http.Server
}

// QueryRequest is the tool invocation body
type QueryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

// NewServer wires the HTTP layer over a loaded store and session
// registry. Query execution runs on a bounded worker pool: the store
// serializes readers on a single connection, so the pool is the
// explicit cap on concurrent query pressure across sessions.
func NewServer(cfg *internal.Config, store *internal.Store, registry *internal.Registry) (*Server, error) {
	workers, err := ants.NewPool(cfg.Server.MaxConcurrentQueries)
	if err != nil {
		return nil, err
	}

	executor := internal.NewExecutor(store)
	executor.SetMaxLimit(cfg.Stream.MaxRowLimit)

	s := &Server{
		cfg:      cfg,
		store:    store,
		executor: executor,
		registry: registry,
		workers:  workers,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.handleHealth)
	engine.GET("/schema", s.handleSchema)

	mcp := engine.Group("/mcp")
	mcp.Use(RateLimitMiddleware(cfg.Server.RequestsPerMinute, cfg.Server.RateBurst))
	mcp.POST("", s.handleQuery)
	mcp.DELETE("/:sessionId", s.handleTerminate)

	s.engine = engine
	s.httpSrv = &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     engine,
		ReadTimeout: 10 * time.Second,
		// SSE responses stay open for the duration of a query;
		// no write timeout
	}
	return s, nil
}

// Engine exposes the router for tests
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server until Stop or failure
func (s *Server) Start() error {
	internal.LogInfo("listening on %s", s.cfg.Server.Addr())
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.workers.Release()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	schema := s.store.Schema()
	samples, err := s.store.SampleRows(c.Request.Context(), 3)
	if err != nil {
		internal.LogError("schema sample failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sample rows"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"table":      schema.Table,
		"columns":    schema.Columns,
		"sampleRows": samples,
		"exampleQueries": []string{
			"SELECT * FROM " + schema.Table + " WHERE department = 'Engineering'",
			"SELECT department, COUNT(*) AS headcount FROM " + schema.Table + " GROUP BY department",
			"SELECT name, salary FROM " + schema.Table + " ORDER BY salary DESC LIMIT 10",
		},
	})
}

func (s *Server) handleTerminate(c *gin.Context) {
	id := c.Param("sessionId")
	if s.registry.Terminate(id) {
		c.JSON(http.StatusOK, gin.H{"terminated": true, "sessionId": id})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "sessionId": id})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SQL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sql is required"})
		return
	}
	if req.Limit < 0 || req.Limit > s.cfg.Stream.MaxRowLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be a positive integer not exceeding " +
				"the configured maximum",
		})
		return
	}

	sess, created := s.registry.Resolve(c.GetHeader(sessionHeader))
	c.Header(sessionHeader, sess.ID)
	if created {
		internal.LogDebug("new session %s for %s", sess.ID, c.ClientIP())
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if err := sess.Acquire(cancel); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session busy", "sessionId": sess.ID})
		return
	}
	defer sess.Release()

	query := internal.Query{Text: req.SQL, Limit: req.Limit}

	if c.Query("mode") == "buffered" {
		sink := &stream.BufferSink{}
		if err := s.submit(ctx, sink, query); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server overloaded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "events": sink.Events})
		return
	}

	sink, err := NewSSESink(ctx, c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.submit(ctx, sink, query); err != nil {
		// Headers already sent; the stream just ends
		internal.LogError("query submit failed: %v", err)
	}
}

// submit runs the query pipeline on the worker pool and waits for it
// to finish. The wait keeps the response writer alive while events
// stream; the bounded pool is what limits store pressure.
func (s *Server) submit(ctx context.Context, sink stream.Sink, query internal.Query) error {
	done := make(chan struct{})
	err := s.workers.Submit(func() {
		defer close(done)
		s.runQuery(ctx, sink, query)
	})
	if err != nil {
		return err
	}
	<-done
	return nil
}

// runQuery drives the pull pipeline: executor to chunker to encoder to
// sink. Each stage only advances when the one below asks for more, so
// a full result set is never buffered.
func (s *Server) runQuery(ctx context.Context, sink stream.Sink, query internal.Query) {
	enc := stream.NewEncoder(sink, s.cfg.Stream.ChunkDelay, nil)

	if err := internal.ValidateQuery(query.Text); err != nil {
		// No execution started, so no query_start: the sequence is
		// the single terminal error event
		if serr := enc.Fail(err); serr != nil {
			internal.LogDebug("client gone before error event: %v", serr)
		}
		return
	}

	columns, err := s.store.Columns(ctx)
	if err != nil {
		s.fail(enc, err)
		return
	}
	if err := enc.Start(query.Text, columns); err != nil {
		internal.LogDebug("client gone at query start: %v", err)
		return
	}

	cur, err := s.executor.Run(ctx, query)
	if err != nil {
		s.fail(enc, err)
		return
	}
	defer cur.Close()

	chunker, err := internal.NewChunker(cur, s.cfg.Stream.ChunkSize)
	if err != nil {
		s.fail(enc, err)
		return
	}

	for chunker.Next() {
		if err := enc.WriteChunk(ctx, chunker.Chunk()); err != nil {
			// Transport failure: stop pulling, release the cursor,
			// log locally. The client is gone; no event can reach it.
			internal.LogDebug("stream aborted: %v", err)
			return
		}
	}
	if err := chunker.Err(); err != nil {
		s.fail(enc, err)
		return
	}

	if err := enc.Complete(); err != nil {
		internal.LogDebug("client gone at completion: %v", err)
	}
}

func (s *Server) fail(enc *stream.Encoder, err error) {
	internal.LogWarn("query failed: %v", err)
	if serr := enc.Fail(err); serr != nil {
		internal.LogDebug("client gone before error event: %v", serr)
	}
}
