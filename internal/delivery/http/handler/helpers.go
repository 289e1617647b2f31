package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/validator"
)

// parseRequest разбирает и валидирует JSON тело запроса
func parseRequest(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errors.ErrInvalidRequest.WithMessage("invalid request body: %v", err)
	}
	return validateRequest(req)
}

func validateRequest(req interface{}) error {
	if err := validator.Validate(req); err != nil {
		return errors.ErrInvalidRequest.WithDetails(validator.Fields(err))
	}
	return nil
}

// readPackage читает геометрический пакет: multipart поле "file" либо сырое тело
func readPackage(c *fiber.Ctx) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.ErrInvalidRequest.WithMessage("cannot open uploaded file: %v", err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, errors.ErrInvalidRequest.WithMessage("geometry package is empty")
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// activePhase разбирает активную фазу процесса, пустое значение - значение по умолчанию
func activePhase(raw string, fallback domain.Phase) (domain.Phase, error) {
	if raw == "" {
		return fallback, nil
	}
	p, err := domain.ParsePhase(raw)
	if err != nil {
		return 0, errors.ErrInvalidRequest.WithMessage("%v", err)
	}
	return p, nil
}
