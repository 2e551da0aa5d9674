package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"SellerHub/middleware"
	"SellerHub/models"
	"SellerHub/pkg/app"
	"SellerHub/pkg/config"
	tokenstore "SellerHub/pkg/token"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const sessionTTL = 24 * time.Hour

// Register creates a dashboard admin. Only the first admin may sign up
// unless ALLOW_REGISTRATION is set.
func Register(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email           string `json:"email"`
			Username        string `json:"username"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))
		username := strings.TrimSpace(body.Username)
		if email == "" || username == "" || body.Password == "" || body.ConfirmPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Email, username, password, and confirm password are required"})
			return
		}
		if body.Password != body.ConfirmPassword {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Passwords do not match"})
			return
		}
		if problem := utils.PasswordProblem(body.Password); problem != "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": problem})
			return
		}

		db := a.DB.WithContext(c.Request.Context())
		if !config.AllowRegistration {
			var n int64
			if err := db.Model(&models.User{}).Count(&n).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
				return
			}
			if n > 0 {
				c.JSON(http.StatusForbidden, gin.H{"msg": "Registration is closed"})
				return
			}
		}

		var exists models.User
		if err := db.Where("email = ? OR username = ?", email, username).First(&exists).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"msg": "Email or username already exists"})
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}

		user := models.User{Email: email, Username: username, DisplayName: username}
		if err := user.SetPassword(body.Password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
			return
		}
		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create user"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"msg": "User created", "username": user.Username, "email": user.Email})
	}
}

func Login(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		email := strings.TrimSpace(strings.ToLower(body.Email))
		if email == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Email and password are required"})
			return
		}

		var user models.User
		if err := a.DB.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid credentials"})
			return
		}
		if !user.CheckPassword(body.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid credentials"})
			return
		}

		tokenStr, exp, err := middleware.IssueToken(user.ID, uuid.NewString(), sessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": tokenStr, "expires_at": exp, "username": user.Username})
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		jti := c.GetString(middleware.ContextJTIKey)
		exp, _ := c.Get(middleware.ContextExpKey)
		expAt, _ := exp.(time.Time)
		tokenstore.RevokeToken(jti, expAt)
		c.JSON(http.StatusOK, gin.H{"msg": "logged out"})
	}
}
