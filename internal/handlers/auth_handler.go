package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/repository"
	"github.com/VincentPrime/endlessgrindbackend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

const minPasswordLength = 8

type accountStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthHandler struct {
	users     accountStore
	jwtSecret string
}

func NewAuthHandler(users *repository.UserRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(raw string) (string, bool) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return strings.ToLower(parsed.Address), true
}

// Register creates a member or coach account. Admin accounts are provisioned
// out of band.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid email format")
	}
	if len(req.Password) < minPasswordLength {
		return fail(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.Role != models.RoleUser && req.Role != models.RoleCoach {
		return fail(c, fiber.StatusBadRequest, "Invalid role")
	}

	existing, err := h.users.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return fail(c, fiber.StatusBadRequest, "Email already exists")
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		slog.ErrorContext(ctx, "failed to check email", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to check email")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         req.Role,
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return fail(c, fiber.StatusBadRequest, "Email already exists")
		}
		slog.ErrorContext(ctx, "failed to create user", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	slog.InfoContext(ctx, "account registered", "user_id", user.ID, "role", user.Role)
	return h.issueToken(c, fiber.StatusCreated, user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid email format")
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
		}
		slog.ErrorContext(ctx, "failed to lookup user", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to lookup user")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	return h.issueToken(c, fiber.StatusOK, user)
}

func (h *AuthHandler) issueToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	user, err := h.users.GetByID(c.UserContext(), actor.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch user")
	}

	return c.JSON(fiber.Map{"success": true, "user": user})
}
