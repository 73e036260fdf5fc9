// Package server wires the paygate HTTP surface: the free catalog and
// stats endpoints, and one payment-gated route per configured endpoint
// backed by a reverse proxy or a file stream.
package server

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/x402-labs/paygate"
	paygategin "github.com/x402-labs/paygate/http/gin"
	"github.com/x402-labs/paygate/registry"
)

// Options configures the server router.
type Options struct {
	Registry    *registry.Registry
	Facilitator paygate.Verifier
	Recorder    *paygate.Recorder
	FrontendURL string
	Logger      *slog.Logger
}

// New builds the gin engine: CORS, the free /list and /stats endpoints,
// and a gated route per registered endpoint.
func New(opts Options) (*gin.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", paygate.ProofHeader},
		ExposeHeaders: []string{"Content-Length", paygate.ReceiptHeader},
	}
	if opts.FrontendURL != "" {
		corsConfig.AllowOrigins = []string{opts.FrontendURL}
	} else {
		logger.Warn("FRONTEND_URL not set, allowing all origins")
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// The catalog is the free entry point: it advertises every priced
	// endpoint in the multi-endpoint body shape.
	router.GET("/list", func(c *gin.Context) {
		docs := opts.Registry.Docs()
		bodies := make([]paygate.CatalogBody, 0, len(docs))
		for _, doc := range docs {
			bodies = append(bodies, paygate.BuildCatalogBody(doc))
		}
		c.JSON(http.StatusOK, bodies)
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, opts.Recorder.Snapshot())
	})

	gateMiddleware := paygategin.NewPaymentMiddleware(paygategin.Config{
		Registry:    opts.Registry,
		Facilitator: opts.Facilitator,
		Recorder:    opts.Recorder,
		Logger:      logger,
	})

	if err := mountDocs(router, opts.Registry, gateMiddleware, logger); err != nil {
		return nil, err
	}
	return router, nil
}

func mountDocs(router *gin.Engine, reg *registry.Registry, gate gin.HandlerFunc, logger *slog.Logger) error {
	for _, doc := range reg.Docs() {
		handler, err := docHandler(doc, logger)
		if err != nil {
			return err
		}

		for _, ep := range doc.Endpoints {
			path := ep.Path
			if path == "" {
				path = doc.Resource
			}
			if ep.Method == "" {
				router.Any(path, gate, handler)
			} else {
				router.Handle(ep.Method, path, gate, handler)
			}
			logger.Info("mounted gated endpoint",
				"resource", doc.Resource, "path", path, "method", ep.Method, "price", ep.Price)
		}
	}
	return nil
}

// docHandler builds the resource handler released after the gate passes:
// a reverse proxy for upstream-backed documents, a file stream for
// artifact documents.
func docHandler(doc paygate.RequirementDoc, logger *slog.Logger) (gin.HandlerFunc, error) {
	switch {
	case doc.Upstream != "":
		target, err := url.Parse(doc.Upstream)
		if err != nil {
			return nil, err
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			// Downstream failure after grant: propagate, never mask as a
			// payment problem.
			logger.Error("upstream proxy error", "resource", doc.Resource, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		}
		return gin.WrapH(proxy), nil

	case doc.File != "":
		return func(c *gin.Context) {
			c.File(doc.File)
		}, nil

	default:
		return func(c *gin.Context) {
			c.JSON(http.StatusBadGateway, gin.H{
				"code":  string(paygate.CodeDownstreamFailure),
				"error": "resource has no upstream or file configured",
			})
		}, nil
	}
}
