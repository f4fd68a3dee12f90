package server_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/prio-scheduler/internal/config"
	"github.com/kubev2v/prio-scheduler/internal/server"
)

var _ = Describe("Server", func() {
	var cfg *config.Configuration

	ping := func(router *gin.RouterGroup) {
		router.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
		})
	}

	do := func(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		cfg = config.NewConfigurationWithDefaults()
	})

	It("should reject an unknown server mode", func() {
		cfg.Server.ServerMode = "staging"
		_, err := server.NewServer(cfg, ping)
		Expect(err).To(HaveOccurred())
	})

	It("should serve health and mount handlers under /api/v1", func() {
		srv, err := server.NewServer(cfg, ping)
		Expect(err).NotTo(HaveOccurred())

		Expect(do(srv.Handler(), http.MethodGet, "/health", "").Code).To(Equal(http.StatusOK))
		Expect(do(srv.Handler(), http.MethodGet, "/api/v1/ping", "").Code).To(Equal(http.StatusOK))
		Expect(do(srv.Handler(), http.MethodGet, "/ping", "").Code).To(Equal(http.StatusNotFound))
	})

	It("should serve metrics only when a handler is given", func() {
		srv, err := server.NewServer(cfg, ping)
		Expect(err).NotTo(HaveOccurred())
		Expect(do(srv.Handler(), http.MethodGet, "/metrics", "").Code).To(Equal(http.StatusNotFound))

		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		})
		srv, err = server.NewServer(cfg, ping, server.WithMetrics(metrics))
		Expect(err).NotTo(HaveOccurred())
		rec := do(srv.Handler(), http.MethodGet, "/metrics", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("# metrics\n"))
	})

	Context("with authentication", func() {
		var (
			auth *server.Authenticator
			srv  *server.Server
		)

		BeforeEach(func() {
			secretFile := filepath.Join(GinkgoT().TempDir(), "secret")
			Expect(os.WriteFile(secretFile, []byte("s3cr3t\n"), 0o600)).To(Succeed())

			var err error
			auth, err = server.NewAuthenticatorFromFile(secretFile)
			Expect(err).NotTo(HaveOccurred())

			srv, err = server.NewServer(cfg, ping, server.WithAuthenticator(auth))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject requests without a token", func() {
			Expect(do(srv.Handler(), http.MethodGet, "/api/v1/ping", "").Code).To(Equal(http.StatusUnauthorized))
		})

		It("should keep health open", func() {
			Expect(do(srv.Handler(), http.MethodGet, "/health", "").Code).To(Equal(http.StatusOK))
		})

		It("should accept a token it issued", func() {
			token, err := auth.Issue("alice", time.Minute)
			Expect(err).NotTo(HaveOccurred())

			rec := do(srv.Handler(), http.MethodGet, "/api/v1/ping", token)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"subject":"alice"`))
		})

		It("should reject an expired token", func() {
			token, err := auth.Issue("alice", -time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(do(srv.Handler(), http.MethodGet, "/api/v1/ping", token).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject a token signed with another secret", func() {
			other, err := server.NewAuthenticator([]byte("other"))
			Expect(err).NotTo(HaveOccurred())
			token, err := other.Issue("mallory", time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(do(srv.Handler(), http.MethodGet, "/api/v1/ping", token).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject a token without expiry", func() {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
				SignedString([]byte("s3cr3t"))
			Expect(err).NotTo(HaveOccurred())
			Expect(do(srv.Handler(), http.MethodGet, "/api/v1/ping", token).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	It("should refuse an empty secret", func() {
		_, err := server.NewAuthenticator(nil)
		Expect(err).To(HaveOccurred())
	})
})
