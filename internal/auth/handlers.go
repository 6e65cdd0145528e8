package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sceneit-backend/internal/apperror"
	"sceneit-backend/internal/middleware"
	"sceneit-backend/internal/models"
	"sceneit-backend/internal/store"
	"sceneit-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userStore store.UserStore
	hasher    *utils.PasswordHasher
	tokens    *utils.TokenService
}

func NewAuthHandler(userStore store.UserStore, hasher *utils.PasswordHasher, tokens *utils.TokenService) *AuthHandler {
	return &AuthHandler{
		userStore: userStore,
		hasher:    hasher,
		tokens:    tokens,
	}
}

// fail hands err to the error middleware. Store sentinels are translated;
// anything unrecognised becomes a 500.
func fail(c *gin.Context, err error) {
	apperror.Abort(c, apperror.FromStore(err))
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	ctx := c.Request.Context()

	var email *string
	if req.Email != "" {
		email = &req.Email
	}

	taken, err := h.userStore.UsernameExists(ctx, req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	if taken {
		fail(c, apperror.UsernameExists())
		return
	}
	if email != nil {
		taken, err = h.userStore.EmailExists(ctx, *email)
		if err != nil {
			fail(c, err)
			return
		}
		if taken {
			fail(c, apperror.EmailExists())
			return
		}
	}

	hashedPassword, err := h.hasher.HashPassword(req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	user := &models.User{
		Username:       req.Username,
		HashedPassword: hashedPassword,
		Email:          email,
		Role:           models.RoleUser,
	}
	if err := h.userStore.CreateUser(ctx, user); err != nil {
		fail(c, err)
		return
	}

	slog.InfoContext(ctx, "user registered", slog.Int64("user_id", user.ID))
	c.JSON(http.StatusCreated, user)
}

// Login answers an unknown username and a wrong password identically.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}

	user, err := h.userStore.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			fail(c, apperror.PasswordIncorrect())
			return
		}
		fail(c, err)
		return
	}
	if !h.hasher.CheckPasswordHash(req.Password, user.HashedPassword) {
		fail(c, apperror.PasswordIncorrect())
		return
	}

	token, err := h.tokens.GenerateJWT(user.Username)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:    token,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

// Validate lets clients check that their token is still accepted.
func (h *AuthHandler) Validate(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

func (h *AuthHandler) Info(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		fail(c, apperror.Unauthenticated())
		return
	}

	user, err := h.userStore.GetUserByUsername(c.Request.Context(), principal.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToUserInfo())
}

// Update changes username and/or email in one transaction. A changed
// username invalidates earlier tokens, so a fresh one is returned.
func (h *AuthHandler) Update(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		fail(c, apperror.Unauthenticated())
		return
	}
	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	ctx := c.Request.Context()

	usernameChanged := false
	err := h.userStore.WithTx(ctx, func(users store.UserStore) error {
		user, err := users.GetUserByUsername(ctx, principal.Username)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return apperror.UsernameNotFound()
			}
			return err
		}

		if strings.TrimSpace(req.Username) != "" && req.Username != user.Username {
			taken, err := users.UsernameExists(ctx, req.Username)
			if err != nil {
				return err
			}
			if taken {
				return apperror.UsernameExists()
			}
			user.Username = req.Username
			usernameChanged = true
		}

		if strings.TrimSpace(req.Email) != "" && req.Email != user.EmailValue() {
			taken, err := users.EmailExists(ctx, req.Email)
			if err != nil {
				return err
			}
			if taken {
				return apperror.EmailExists()
			}
			email := req.Email
			user.Email = &email
		}

		return users.UpdateUser(ctx, user)
	})
	if err != nil {
		fail(c, err)
		return
	}

	resp := models.UpdateResponse{Message: "Updated successfully"}
	if usernameChanged {
		token, err := h.tokens.GenerateJWT(req.Username)
		if err != nil {
			fail(c, err)
			return
		}
		resp.Token = token
	}
	c.JSON(http.StatusOK, resp)
}

// PasswordUpdate rejects an unchanged password before checking the old one.
func (h *AuthHandler) PasswordUpdate(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		fail(c, apperror.Unauthenticated())
		return
	}
	var req models.PasswordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	if req.NewPassword == req.OldPassword {
		fail(c, apperror.SamePassword())
		return
	}
	ctx := c.Request.Context()

	err := h.userStore.WithTx(ctx, func(users store.UserStore) error {
		user, err := users.GetUserByUsername(ctx, principal.Username)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return apperror.UsernameNotFound()
			}
			return err
		}
		if !h.hasher.CheckPasswordHash(req.OldPassword, user.HashedPassword) {
			return apperror.PasswordIncorrect()
		}

		hashed, err := h.hasher.HashPassword(req.NewPassword)
		if err != nil {
			return err
		}
		user.HashedPassword = hashed
		return users.UpdateUser(ctx, user)
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Password updated successfully!"})
}

// Delete re-verifies the password against the hash captured when the request
// was authenticated, then removes the account and everything it owns.
func (h *AuthHandler) Delete(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		fail(c, apperror.Unauthenticated())
		return
	}
	var req models.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	if !h.hasher.CheckPasswordHash(req.Password, principal.HashedPassword) {
		fail(c, apperror.PasswordIncorrect())
		return
	}

	ctx := c.Request.Context()
	if err := h.userStore.DeleteUser(ctx, principal.ID); err != nil {
		fail(c, err)
		return
	}

	slog.InfoContext(ctx, "user deleted", slog.Int64("user_id", principal.ID))
	c.JSON(http.StatusOK, models.MessageResponse{Message: "User deleted successfully"})
}
