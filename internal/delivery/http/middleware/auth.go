package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/utils"
	"github.com/policyhub-service/internal/usecase"
)

// ActorHeader - имя пользователя, от которого выполняется изменение
const ActorHeader = "X-Actor"

// RequireEditToken пропускает только запросы с bearer-токеном редактирования.
// Пустой токен отключает проверку (локальная разработка).
func RequireEditToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		auth := c.Get(fiber.HeaderAuthorization)
		provided, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			return utils.SendError(c, errors.ErrForbidden)
		}
		return c.Next()
	}
}

// Actor кладёт автора изменения в контекст запроса
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actor := strings.TrimSpace(c.Get(ActorHeader)); actor != "" {
			c.SetUserContext(usecase.ContextWithActor(c.UserContext(), actor))
		}
		return c.Next()
	}
}
