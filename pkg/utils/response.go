package utils

import "github.com/gofiber/fiber/v2"

func Fail(c *fiber.Ctx, status int, label string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": label,
	})
}

func FailWithMessage(c *fiber.Ctx, status int, label, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   label,
		"message": message,
	})
}

func ValidationFailed(c *fiber.Ctx, messages map[string]string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":    "Validation failed",
		"messages": messages,
	})
}

func Data(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"data": payload,
	})
}
