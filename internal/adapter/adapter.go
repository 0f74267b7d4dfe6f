// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package adapter runs the scripted metadata adapter shipped in the
// configuration bundle.
//
// The script defines one function per entry point, each called as
// fn(callback, argument). The script reports its outcome by calling
// callback(error, result). Host functions readContentsOfURLAsString and
// nativeLog are installed before the script is evaluated.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/mediathek/internal/platform/httpx"
)

// Script entry points.
const (
	FuncResolveURN   = "getUrnForUrl"
	FuncItem         = "getMetadataForItem"
	FuncProgramMeta  = "getProgramMetadata"
	FuncProgramFeed  = "getProgramFeed"
	FuncProgramList  = "getProgramList"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "mediathek/1.0"
)

// Options configures a Runtime.
type Options struct {
	// Timeout bounds a single entry point call including its HTTP requests.
	Timeout time.Duration
	// HTTPTimeout bounds a single readContentsOfURLAsString request.
	HTTPTimeout time.Duration
	// RequestsPerSecond and Burst throttle outbound requests. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	// Concurrency is the number of script VMs that may run at once.
	Concurrency int
	UserAgent   string
	// HTTPClient defaults to a traced client with a cookie jar.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// instance is one VM evaluated from the active program. A goja runtime
// must not be used from more than one goroutine at a time, so an instance
// belongs to exactly one call while it is checked out.
type instance struct {
	vm  *goja.Runtime
	gen uint64
	ctx context.Context // context of the call currently using vm
}

// Runtime runs entry points on a pool of VMs that share one compiled
// script. Idle VMs are reused; Load retires every VM of the old script.
type Runtime struct {
	slots chan struct{}

	mu      sync.Mutex
	program *goja.Program
	gen     uint64
	idle    []*instance

	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New returns a Runtime without a script. Load must be called before use.
func New(opts Options) *Runtime {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.New(httpx.Options{
			Timeout:   opts.HTTPTimeout,
			UserAgent: opts.UserAgent,
			CookieJar: true,
			Traced:    true,
			Operation: "adapter",
		})
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Runtime{
		slots:   make(chan struct{}, opts.Concurrency),
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  opts.Logger,
	}
}

// Load compiles source, evaluates it in a fresh VM and makes it the active
// script. On error the previously loaded script stays active.
func (r *Runtime) Load(source string) error {
	program, err := goja.Compile("bundle.js", source, false)
	if err != nil {
		return scriptError("<load>", ErrScript, err)
	}
	// Top-level code may already issue requests.
	inst, err := r.spawn(context.Background(), program, 0)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.gen++
	inst.gen = r.gen
	r.program = program
	r.idle = []*instance{inst}
	r.mu.Unlock()

	r.logger.Info().Int("bytes", len(source)).Int("concurrency", cap(r.slots)).Msg("adapter script loaded")
	return nil
}

// spawn builds a VM with the host functions installed and runs program in it.
func (r *Runtime) spawn(ctx context.Context, program *goja.Program, gen uint64) (*instance, error) {
	inst := &instance{vm: goja.New(), gen: gen, ctx: ctx}
	if err := inst.vm.Set("readContentsOfURLAsString", r.readContentsOfURLAsString(inst)); err != nil {
		return nil, fmt.Errorf("install host function: %w", err)
	}
	if err := inst.vm.Set("nativeLog", r.nativeLog); err != nil {
		return nil, fmt.Errorf("install host function: %w", err)
	}
	if _, err := inst.vm.RunProgram(program); err != nil {
		return nil, scriptError("<load>", ErrScript, err)
	}
	inst.ctx = context.Background()
	return inst, nil
}

// Loaded reports whether a script is active.
func (r *Runtime) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.program != nil
}

// acquire waits for a free slot and returns an idle VM of the active
// script, evaluating a new one when none is idle.
func (r *Runtime) acquire(ctx context.Context) (*instance, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, scriptError("<acquire>", ErrInterrupted, ctx.Err())
	}

	r.mu.Lock()
	program, gen := r.program, r.gen
	if program == nil {
		r.mu.Unlock()
		<-r.slots
		return nil, ErrNotLoaded
	}
	if n := len(r.idle); n > 0 {
		inst := r.idle[n-1]
		r.idle = r.idle[:n-1]
		r.mu.Unlock()
		return inst, nil
	}
	r.mu.Unlock()

	inst, err := r.spawn(ctx, program, gen)
	if err != nil {
		<-r.slots
		return nil, err
	}
	return inst, nil
}

// release returns inst to the pool unless its script has been replaced.
func (r *Runtime) release(inst *instance) {
	inst.ctx = context.Background()
	r.mu.Lock()
	if inst.gen == r.gen {
		r.idle = append(r.idle, inst)
	}
	r.mu.Unlock()
	<-r.slots
}

// ResolveURN calls getUrnForUrl.
func (r *Runtime) ResolveURN(ctx context.Context, url string) (string, error) {
	return r.Call(ctx, FuncResolveURN, url)
}

// CollectItem calls getMetadataForItem.
func (r *Runtime) CollectItem(ctx context.Context, urn string) (string, error) {
	return r.Call(ctx, FuncItem, urn)
}

// CollectProgramMeta calls getProgramMetadata.
func (r *Runtime) CollectProgramMeta(ctx context.Context, urn string) (string, error) {
	return r.Call(ctx, FuncProgramMeta, urn)
}

// CollectProgramFeed calls getProgramFeed.
func (r *Runtime) CollectProgramFeed(ctx context.Context, urn string) (string, error) {
	return r.Call(ctx, FuncProgramFeed, urn)
}

// CollectProgramList calls getProgramList.
func (r *Runtime) CollectProgramList(ctx context.Context, publisherID string) (string, error) {
	return r.Call(ctx, FuncProgramList, publisherID)
}

// Call invokes the script function name with arg and returns the result the
// script passed to its callback. Up to Options.Concurrency calls run in
// parallel, each on its own VM.
func (r *Runtime) Call(ctx context.Context, name, arg string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	inst, err := r.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer r.release(inst)
	vm := inst.vm

	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return "", &ScriptError{Sentinel: ErrFunctionNotFound, Function: name}
	}

	inst.ctx = ctx
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer func() {
		stop()
		vm.ClearInterrupt()
	}()

	var (
		called    bool
		resultErr error
		result    string
	)
	callback := func(call goja.FunctionCall) goja.Value {
		if called {
			return goja.Undefined()
		}
		called = true
		if e := call.Argument(0); !isNullish(e) {
			resultErr = &ScriptError{Sentinel: ErrScript, Function: name, Message: e.String(), StackTrace: stackOf(e)}
			return goja.Undefined()
		}
		res := call.Argument(1)
		if isNullish(res) {
			resultErr = &ScriptError{Sentinel: ErrNoResult, Function: name, Message: "callback received no result"}
			return goja.Undefined()
		}
		result, resultErr = exportString(res)
		return goja.Undefined()
	}

	if _, err := fn(goja.Undefined(), vm.ToValue(callback), vm.ToValue(arg)); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", scriptError(name, ErrInterrupted, err)
		}
		return "", scriptError(name, ErrScript, err)
	}
	if !called {
		return "", &ScriptError{Sentinel: ErrNoResult, Function: name}
	}
	if resultErr != nil {
		return "", resultErr
	}
	return result, nil
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// exportString returns strings unchanged and encodes any other value as JSON.
func exportString(v goja.Value) (string, error) {
	if s, ok := v.Export().(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v.Export())
	if err != nil {
		return "", fmt.Errorf("encode adapter result: %w", err)
	}
	return string(b), nil
}

// stackOf extracts the stack property of a JavaScript Error value.
func stackOf(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return ""
	}
	st := obj.Get("stack")
	if isNullish(st) {
		return ""
	}
	return st.String()
}

func scriptError(function string, sentinel, err error) *ScriptError {
	se := &ScriptError{Sentinel: sentinel, Function: function, Err: err}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			se.Message = v.String()
		}
		se.StackTrace = exc.String()
	}
	return se
}
