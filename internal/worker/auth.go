package worker

import (
	"crypto/subtle"
	"strings"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// Authorize checks an Authorization header value against the shared token.
// Every credential is accepted when no token is configured.
func (s *Service) Authorize(header string) error {
	if s.auth == "" {
		return nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.auth)) != 1 {
		return rpc.Errorf(rpc.CodeUnauthorized, "invalid worker credential")
	}
	return nil
}

// BearerHeader formats token as an Authorization header value.
func BearerHeader(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
