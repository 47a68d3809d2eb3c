package httptransport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	audithandler "equitrail/internal/audit/handler"
	auditmem "equitrail/internal/audit/store/memory"
	"equitrail/internal/platform/middleware"
	"equitrail/internal/snapshot"
	snapshothandler "equitrail/internal/snapshot/handler"
	snapmem "equitrail/internal/snapshot/store/memory"
	httptransport "equitrail/internal/transport/http"
	"equitrail/pkg/testutil"
)

const signingKey = "test-signing-key"

type RouterSuite struct {
	suite.Suite
	handler http.Handler
	healthy bool
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditStore := auditmem.NewInMemoryStore()

	auditLogger, err := audit.NewLogger(auditStore, logger)
	s.Require().NoError(err)
	snapService, err := snapshot.NewService(snapmem.NewInMemoryStore(), auditLogger, logger)
	s.Require().NoError(err)

	s.healthy = true
	s.handler = httptransport.NewRouter(httptransport.Deps{
		AuditHandler:    audithandler.New(auditStore, logger),
		SnapshotHandler: snapshothandler.New(snapService, logger),
		Validator:       middleware.NewHMACValidator(signingKey),
		Logger:          logger,
		Health: func(context.Context) error {
			if !s.healthy {
				return errors.New("db unreachable")
			}
			return nil
		},
	})
}

func (s *RouterSuite) token(role string, key string) string {
	claims := jwt.MapClaims{
		"sub":  "admin@equitrail.test",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) TestHealth() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusOK, rr.Code)

	s.healthy = false
	rr = testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

func (s *RouterSuite) TestMetricsEndpointIsOpen() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *RouterSuite) TestAdminSurfaceAuth() {
	cases := []struct {
		name       string
		authorize  func(*http.Request)
		wantStatus int
	}{
		{
			name:       "no token",
			authorize:  func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not.a.jwt")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signing key",
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+s.token("admin", "some-other-key"))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "non-admin role",
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+s.token("investor", signingKey))
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "admin",
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+s.token("admin", signingKey))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit/stats")
			tc.authorize(req)
			rr := testutil.DoRequest(s.handler, req)
			s.Equal(tc.wantStatus, rr.Code)
		})
	}
}

func (s *RouterSuite) TestSnapshotEndpointIsGuardedToo() {
	req := testutil.NewRequest(s.T(), http.MethodGet,
		"/investments/1b4e28ba-2fa1-11d2-883f-0016d3cca427/snapshot-comparison")
	rr := testutil.DoRequest(s.handler, req)
	s.Equal(http.StatusUnauthorized, rr.Code)
}
