// Package emulator is a local stand-in for the Lambda control plane. It
// serves the runtime API to one runtime process and accepts invocations
// through the public Invoke API path.
package emulator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aura-studio/lambda-runtime/rapi"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	runtimePrefix = "/2018-06-01/runtime"

	headerInvocationType = "X-Amz-Invocation-Type"
	headerAmzClientCtx   = "X-Amz-Client-Context"
	headerAmzFuncError   = "X-Amz-Function-Error"
)

// ErrorBody is the failure reported by a runtime.
type ErrorBody struct {
	Message string `json:"errorMessage"`
	Type    string `json:"errorType"`
}

func (e *ErrorBody) Error() string {
	return e.Type + ": " + e.Message
}

// Result is what the runtime posted for an invocation.
type Result struct {
	RequestID string
	Payload   []byte
	Err       *ErrorBody
}

// Invocation is an event waiting for, or handled by, the runtime.
type Invocation struct {
	RequestID     string
	Event         []byte
	TraceID       string
	ClientContext string
	Identity      string

	once   sync.Once
	done   chan struct{}
	result *Result
}

func (i *Invocation) complete(r *Result) bool {
	completed := false
	i.once.Do(func() {
		i.result = r
		close(i.done)
		completed = true
	})
	return completed
}

// Wait blocks until the runtime posted a result or ctx ends.
func (i *Invocation) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-i.done:
		return i.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Emulator serves the runtime API and the Invoke API for one function.
type Emulator struct {
	*Options
	*gin.Engine

	logger *zap.SugaredLogger
	queue  chan *Invocation

	mu       sync.Mutex
	statuses []int
	inflight map[string]*Invocation
	initErr  *ErrorBody
	fetches  int
}

// New returns an Emulator with its routes installed.
func New(opts ...Option) *Emulator {
	options := NewOptions(opts...)
	if !options.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	e := &Emulator{
		Options:  options,
		Engine:   gin.New(),
		logger:   options.Logger.Named("emulator"),
		queue:    make(chan *Invocation, options.QueueSize),
		statuses: append([]int(nil), options.FetchStatuses...),
		inflight: make(map[string]*Invocation),
	}
	e.Use(gin.Recovery())
	if e.DebugMode {
		e.Use(e.accessLog)
	}
	e.InstallHandlers()
	return e
}

// InstallHandlers registers the runtime and Invoke API routes.
func (e *Emulator) InstallHandlers() {
	e.GET("/health-check", e.OK)
	e.GET(runtimePrefix+"/invocation/next", e.Next)
	e.POST(runtimePrefix+"/invocation/:id/response", e.Response)
	e.POST(runtimePrefix+"/invocation/:id/error", e.Error)
	e.POST(runtimePrefix+"/init/error", e.InitError)
	e.POST("/2015-03-31/functions/:function/invocations", e.Invoke)
}

func (e *Emulator) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	e.logger.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}

// Enqueue hands event to the runtime. A request id is generated when the
// invocation has none.
func (e *Emulator) Enqueue(inv *Invocation) *Invocation {
	if inv.RequestID == "" {
		inv.RequestID = uuid.NewString()
	}
	if inv.TraceID == "" {
		inv.TraceID = newTraceID()
	}
	inv.done = make(chan struct{})
	e.queue <- inv
	return inv
}

// InitFailure returns the init error reported by the runtime, if any.
func (e *Emulator) InitFailure() *ErrorBody {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initErr
}

// Fetches counts next-invocation requests served.
func (e *Emulator) Fetches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetches
}

func (e *Emulator) OK(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Next hands out the next queued invocation, or an injected status.
func (e *Emulator) Next(c *gin.Context) {
	e.mu.Lock()
	e.fetches++
	if len(e.statuses) > 0 {
		code := e.statuses[0]
		e.statuses = e.statuses[1:]
		e.mu.Unlock()
		c.Status(code)
		return
	}
	e.mu.Unlock()

	var inv *Invocation
	select {
	case inv = <-e.queue:
	case <-c.Request.Context().Done():
		return
	}

	e.mu.Lock()
	e.inflight[inv.RequestID] = inv
	e.mu.Unlock()

	headers := invocation.Headers{
		RequestID:          inv.RequestID,
		DeadlineMs:         strconv.FormatInt(time.Now().Add(e.Timeout).UnixMilli(), 10),
		TraceID:            inv.TraceID,
		InvokedFunctionArn: e.FunctionArn,
		ClientContext:      inv.ClientContext,
		Identity:           inv.Identity,
	}
	for k, v := range headers.Header() {
		c.Header(k, v[0])
	}
	c.Data(http.StatusOK, "application/json", inv.Event)
}

func (e *Emulator) take(c *gin.Context) (*Invocation, bool) {
	id := c.Param("id")
	e.mu.Lock()
	inv, ok := e.inflight[id]
	delete(e.inflight, id)
	e.mu.Unlock()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorMessage": fmt.Sprintf("invalid request id %s", id),
			"errorType":    "InvalidRequestID",
		})
	}
	return inv, ok
}

// Response completes an invocation with the posted result.
func (e *Emulator) Response(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	inv, ok := e.take(c)
	if !ok {
		return
	}
	inv.complete(&Result{RequestID: inv.RequestID, Payload: body})
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// Error completes an invocation with the posted failure.
func (e *Emulator) Error(c *gin.Context) {
	failure, err := readErrorBody(c)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	inv, ok := e.take(c)
	if !ok {
		return
	}
	inv.complete(&Result{RequestID: inv.RequestID, Err: failure})
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// InitError stores a startup failure.
func (e *Emulator) InitError(c *gin.Context) {
	failure, err := readErrorBody(c)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	e.mu.Lock()
	e.initErr = failure
	e.mu.Unlock()
	e.logger.Warnf("runtime init failed: %v", failure)
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// Invoke implements the public Invoke API for a single function.
func (e *Emulator) Invoke(c *gin.Context) {
	event, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if len(event) == 0 {
		event = []byte("{}")
	}

	inv := &Invocation{Event: event}
	if raw := c.GetHeader(headerAmzClientCtx); raw != "" {
		if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
			inv.ClientContext = string(b)
		}
	}

	switch c.GetHeader(headerInvocationType) {
	case "DryRun":
		c.Status(http.StatusNoContent)
		return
	case "Event":
		e.Enqueue(inv)
		c.Status(http.StatusAccepted)
		return
	}

	e.Enqueue(inv)
	result, err := inv.Wait(c.Request.Context())
	if err != nil {
		return
	}
	if result.Err != nil {
		c.Header(headerAmzFuncError, "Unhandled")
		c.JSON(http.StatusOK, result.Err)
		return
	}
	c.Data(http.StatusOK, "application/json", result.Payload)
}

func readErrorBody(c *gin.Context) (*ErrorBody, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, errors.New("error body is not JSON")
	}
	parsed := gjson.ParseBytes(body)
	failure := &ErrorBody{
		Message: parsed.Get("errorMessage").String(),
		Type:    parsed.Get("errorType").String(),
	}
	if failure.Type == "" {
		failure.Type = c.GetHeader(rapi.HeaderFunctionErrorType)
	}
	return failure, nil
}

func newTraceID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("Root=1-%08x-%s;Sampled=0", time.Now().Unix(), id[:24])
}
