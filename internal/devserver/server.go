package devserver

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/webbundle/internal/bundle"
	httpmiddleware "github.com/wolfeidau/webbundle/internal/http"
)

const upstreamHost = "127.0.0.1"

type Config struct {
	// Directory served as the site root
	PublicDir string
	// Allowed CORS origins, empty disables CORS headers
	CORSOrigins []string
	// Shell command started after the first successful build
	StartCommand string
	// Rebuild with fresh aliases when the tsconfig changes
	WatchTsconfig bool
}

// Server runs an incremental esbuild context in watch mode and fronts its
// built-in server with a reverse proxy. The esbuild context is replaced when
// aliases are reloaded.
type Server struct {
	cfg      Config
	pipeline *bundle.Pipeline
	starter  *Starter
	logger   zerolog.Logger

	reloads *reloadHub

	mu       sync.RWMutex
	buildCtx api.BuildContext
	upstream *url.URL
	closed   bool
	builds   chan struct{}
}

// ErrClosed is returned when the server is used after Close
var ErrClosed = errors.New("dev server closed")

func New(cfg Config, pipeline *bundle.Pipeline, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger,
		reloads:  newReloadHub(cfg.CORSOrigins),
		builds:   make(chan struct{}, 1),
	}
	if cfg.StartCommand != "" {
		s.starter = NewStarter(cfg.StartCommand)
	}
	return s
}

// Start creates the first esbuild context and, when enabled, watches the
// tsconfig and the public directory until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startContext(); err != nil {
		return err
	}

	if cfg := s.pipeline.Config(); cfg.LiveReload && s.cfg.PublicDir != "" {
		w, err := newPublicWatcher(s.cfg.PublicDir, filepath.Dir(cfg.Path(cfg.Outfile)), func(path string) {
			log.Debug().Str("file", path).Msg("Public file changed")
			s.reloads.broadcast("public")
		})
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("dir", s.cfg.PublicDir).Msg("Public directory missing, not watching it")
		case err != nil:
			return err
		default:
			go w.run(ctx)
		}
	}

	if s.cfg.WatchTsconfig {
		w, err := newTsconfigWatcher(s.pipeline.Config(), s.reload)
		if err != nil {
			return err
		}
		go w.run(ctx)
	}

	return nil
}

// Close disposes the esbuild context and stops the started command
func (s *Server) Close() error {
	s.mu.Lock()
	buildCtx := s.buildCtx
	s.buildCtx = nil
	s.closed = true
	s.mu.Unlock()

	if buildCtx != nil {
		buildCtx.Dispose()
	}
	s.reloads.close()

	if s.starter != nil {
		return s.starter.Stop()
	}
	return nil
}

// Handler proxies requests to the current esbuild server and accepts live
// reload connections
func (s *Server) Handler() http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(s.target())
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Upstream unavailable")
			http.Error(w, "Bundle server unavailable", http.StatusBadGateway)
		},
	}

	mux := http.NewServeMux()
	mux.Handle(bundle.LiveReloadPath, s.reloads)
	mux.Handle("/", proxy)

	var handler http.Handler = mux
	if len(s.cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(handler)
	}

	return httpmiddleware.RequestLogger(s.logger)(handler)
}

// Builds receives a value after each successful build, dropping values
// nobody is waiting for
func (s *Server) Builds() <-chan struct{} {
	return s.builds
}

func (s *Server) target() *url.URL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.upstream == nil {
		return &url.URL{Scheme: "http", Host: net.JoinHostPort(upstreamHost, "0")}
	}
	return s.upstream
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Server) startContext() error {
	if s.isClosed() {
		return ErrClosed
	}

	buildCtx, err := s.pipeline.Context(s.onBuild)
	if err != nil {
		return err
	}

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		buildCtx.Dispose()
		return err
	}

	served, err := buildCtx.Serve(api.ServeOptions{
		Host:     upstreamHost,
		Servedir: s.cfg.PublicDir,
	})
	if err != nil {
		buildCtx.Dispose()
		return err
	}

	upstream := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(upstreamHost, strconv.Itoa(int(served.Port))),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		buildCtx.Dispose()
		return ErrClosed
	}
	previous := s.buildCtx
	s.buildCtx = buildCtx
	s.upstream = upstream
	s.mu.Unlock()

	if previous != nil {
		previous.Dispose()
	}

	log.Info().Str("upstream", upstream.String()).Str("servedir", s.cfg.PublicDir).Msg("Bundle server ready")
	return nil
}

func (s *Server) onBuild(res *bundle.Result, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Rebuild failed")
		return
	}

	log.Info().Int("outputs", len(res.Outputs)).Dur("duration", res.Duration).Msg("Rebuild finished")
	s.reloads.broadcast("build")

	if s.starter != nil {
		if err := s.starter.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start command")
		}
	}

	select {
	case s.builds <- struct{}{}:
	default:
	}
}

// reload applies new aliases and replaces the esbuild context. On failure the
// previous context keeps serving.
func (s *Server) reload(aliases []bundle.Alias) error {
	previous := s.pipeline.Aliases()
	s.pipeline.SetAliases(aliases)

	if err := s.startContext(); err != nil {
		s.pipeline.SetAliases(previous)
		return errors.Join(errors.New("failed to restart bundle context"), err)
	}

	log.Info().Int("aliases", len(aliases)).Msg("Aliases reloaded")
	return nil
}
