package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/shield-service/internal/api/dto"
	"github.com/spec-kit/shield-service/internal/auth"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/service"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

func requestMeta(c *fiber.Ctx) domain.RequestMeta {
	return domain.RequestMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

// bind parses the JSON body into req and runs its validation tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// pathID returns a UUID path parameter. Anything unparsable cannot name an
// existing row, so it is reported as missing.
func pathID(c *fiber.Ctx, param, resource string) (string, error) {
	raw := c.Params(param)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{"id": raw})
	}
	return raw, nil
}

func pageRequest(c *fiber.Ctx) service.PageRequest {
	return service.PageRequest{
		Page:    parseInt(c.Query("page"), 1),
		PerPage: parseInt(c.Query("per_page"), 0),
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pagination(info service.PageInfo) dto.PaginationResponse {
	return dto.PaginationResponse{
		Page:    info.CurrentPage,
		PerPage: info.PerPage,
		Total:   info.Total,
		Pages:   info.Pages,
	}
}
