package middleware

import (
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

// suspiciousInput covers SQL injection, script injection and path traversal
// fragments. Compiled once for every middleware instance.
var suspiciousInput = compileAll(
	`(?i)\bUNION\b.*\bSELECT\b`,
	`(?i)\bOR\b.*=.*\bOR\b`,
	`(?i)\bAND\b.*=.*\bAND\b`,
	`(?i)\bINSERT\b.*\bINTO\b`,
	`(?i)\bDELETE\b.*\bFROM\b`,
	`(?i)\bUPDATE\b.*\bSET\b`,
	`(?i)\b(DROP|ALTER)\b.*\bTABLE\b`,
	`--`,
	`/\*.*\*/`,
	`(?i)<(script|iframe|object|embed)\b[^>]*>`,
	`(?i)javascript:`,
	`(?i)on(load|click|error)=`,
	`\.\./`,
	`\.\.\\`,
	`(?i)%2e%2e(%2f|%5c)`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func isSuspicious(value string) bool {
	return slices.ContainsFunc(suspiciousInput, func(re *regexp.Regexp) bool {
		return re.MatchString(value)
	})
}

// stripControl drops control characters other than tab, newline and CR.
func stripControl(value string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, value)
}

// inputField is one inspected request value.
type inputField struct {
	source string
	key    string
	values []string
}

// requestFields lists query parameters and headers. The Authorization header
// is never inspected since tokens routinely contain "--" style sequences.
func requestFields(query url.Values, header http.Header) []inputField {
	fields := make([]inputField, 0, len(query)+len(header))
	for key, values := range query {
		fields = append(fields, inputField{source: "query", key: key, values: values})
	}
	for key, values := range header {
		if strings.EqualFold(key, "Authorization") {
			continue
		}
		fields = append(fields, inputField{source: "header", key: key, values: values})
	}
	return fields
}

type ValidationMiddleware struct {
	logger *logger.Logger
}

func NewValidationMiddleware(logger *logger.Logger) *ValidationMiddleware {
	return &ValidationMiddleware{logger: logger}
}

// SanitizeInput strips control characters from query parameters and headers
// in place.
func (m *ValidationMiddleware) SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		queryChanged := false

		// the values slices alias query and the request header map
		for _, f := range requestFields(query, c.Request.Header) {
			for i, v := range f.values {
				clean := stripControl(v)
				if clean == v {
					continue
				}
				f.values[i] = clean
				if f.source == "query" {
					queryChanged = true
				}
				m.logger.Info("Sanitized request input",
					zap.String("source", f.source),
					zap.String("key", f.key))
			}
		}

		if queryChanged {
			c.Request.URL.RawQuery = query.Encode()
		}
		c.Next()
	}
}

// ValidateContentType rejects bodies whose media type is not in allowed.
// Requests without a body pass.
func (m *ValidationMiddleware) ValidateContentType(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case c.Request.Method == http.MethodGet, c.Request.Method == http.MethodDelete, c.Request.ContentLength == 0:
			c.Next()
			return
		}

		header := c.GetHeader("Content-Type")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, invalidRequest("Content-Type header is required"))
			return
		}

		mediaType, _, err := mime.ParseMediaType(header)
		if err != nil || !slices.Contains(allowed, mediaType) {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, dto.Error{
				ErrorCode: string(domain.CodeInvalidRequest),
				Message:   "unsupported Content-Type",
				Detail:    strings.Join(allowed, ","),
			})
			return
		}
		c.Next()
	}
}

// ValidateRequestSize caps the request body at maxSize bytes.
func (m *ValidationMiddleware) ValidateRequestSize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, invalidRequest("request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

func (m *ValidationMiddleware) BlockSuspiciousPatterns() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSuspicious(c.Request.URL.Path) {
			m.block(c, "path", c.Request.URL.Path)
			return
		}
		for _, f := range requestFields(c.Request.URL.Query(), c.Request.Header) {
			if slices.ContainsFunc(f.values, isSuspicious) {
				m.block(c, f.source, f.key)
				return
			}
		}
		c.Next()
	}
}

func (m *ValidationMiddleware) block(c *gin.Context, source, key string) {
	m.logger.Warn("Blocked suspicious request",
		zap.String("source", source),
		zap.String("key", key),
		zap.String("ip", c.ClientIP()))
	c.AbortWithStatusJSON(http.StatusBadRequest, invalidRequest("invalid request"))
}

// ValidateTenantHeader rejects an X-Tenant-Slug header that cannot be a slug
// before any directory lookup is made.
func (m *ValidationMiddleware) ValidateTenantHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(tenancy.HeaderTenantSlug)
		if raw != "" && !domain.ValidSlug(domain.NormalizeSlug(raw)) {
			m.logger.Warn("Rejected malformed tenant header",
				zap.String("value", raw),
				zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusBadRequest, invalidRequest("malformed "+tenancy.HeaderTenantSlug+" header"))
			return
		}
		c.Next()
	}
}

func invalidRequest(message string) dto.Error {
	return dto.Error{ErrorCode: string(domain.CodeInvalidRequest), Message: message}
}
