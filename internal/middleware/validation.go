package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// ValidationRule describes one field's validation requirements, adapted from
// the teacher's libs/go/middleware/validation.go.
type ValidationRule struct {
	Field     string
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Min       float64
	Max       float64
	HasMin    bool
	HasMax    bool
}

// ValidationConfig is a named set of rules applied to a request body decoded
// into a map[string]any.
type ValidationConfig struct {
	Rules []ValidationRule
}

// ValidationError is one field-level failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	SKURegex   = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)
)

// ValidateInput builds a gin.HandlerFunc enforcing config against the
// request body (parsed as JSON into a generic map), matching the teacher's
// ValidateInput contract.
func ValidateInput(config ValidationConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   gin.H{"code": "invalid_payload", "message": "malformed JSON body"},
				})
				return
			}
		}

		var errs []ValidationError
		for _, rule := range config.Rules {
			if err := validateField(rule, body); err != "" {
				errs = append(errs, ValidationError{Field: rule.Field, Message: err})
			}
		}

		if len(errs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "invalid_payload", "message": "validation failed", "details": errs},
			})
			return
		}

		c.Set("validatedBody", body)
		c.Next()
	}
}

func validateField(rule ValidationRule, body map[string]any) string {
	raw, present := body[rule.Field]
	if !present || raw == nil {
		if rule.Required {
			return "field is required"
		}
		return ""
	}

	switch v := raw.(type) {
	case string:
		if rule.MinLength > 0 && len(v) < rule.MinLength {
			return fmt.Sprintf("must be at least %d characters", rule.MinLength)
		}
		if rule.MaxLength > 0 && len(v) > rule.MaxLength {
			return fmt.Sprintf("must be at most %d characters", rule.MaxLength)
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(v) {
			return "does not match expected format"
		}
	case float64:
		if rule.HasMin && v < rule.Min {
			return fmt.Sprintf("must be >= %v", rule.Min)
		}
		if rule.HasMax && v > rule.Max {
			return fmt.Sprintf("must be <= %v", rule.Max)
		}
	}
	return ""
}

// ValidateQueryParams enforces page/limit bounds on list endpoints (§4.7:
// `page >= 1, limit in [1,100]`).
func ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := c.DefaultQuery("page", "1")
		limit := c.DefaultQuery("limit", "10")

		p, err1 := parsePositiveInt(page)
		l, err2 := parsePositiveInt(limit)
		if err1 != nil || err2 != nil || p < 1 || l < 1 || l > 100 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "invalid_payload", "message": "page must be >= 1 and limit must be in [1,100]"},
			})
			return
		}
		c.Set("page", p)
		c.Set("limit", l)
		c.Next()
	}
}

func parsePositiveInt(s string) (int32, error) {
	var n int32
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
