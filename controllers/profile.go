package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"SellerHub/middleware"
	"SellerHub/models"
	"SellerHub/pkg/app"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
)

func currentUser(c *gin.Context, a *app.App) (*models.User, bool) {
	uid, _ := strconv.Atoi(middleware.CurrentUserID(c))
	var user models.User
	if err := a.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
		return nil, false
	}
	return &user, true
}

func Profile(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, a)
		if !ok {
			return
		}

		if c.Request.Method == http.MethodGet {
			c.JSON(http.StatusOK, gin.H{
				"id":           user.ID,
				"email":        user.Email,
				"username":     user.Username,
				"display_name": user.DisplayName,
				"signature":    user.Signature,
			})
			return
		}

		// PUT
		var body struct {
			Email       string  `json:"email"`
			Username    string  `json:"username"`
			Password    string  `json:"password"`
			DisplayName *string `json:"display_name"`
			Signature   *string `json:"signature"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		newEmail := strings.TrimSpace(strings.ToLower(body.Email))
		if newEmail == "" {
			newEmail = user.Email
		}
		newUsername := strings.TrimSpace(body.Username)
		if newUsername == "" {
			newUsername = user.Username
		}

		db := a.DB.WithContext(c.Request.Context())
		if newEmail != user.Email {
			var t models.User
			if err := db.Where("email = ?", newEmail).First(&t).Error; err == nil {
				c.JSON(http.StatusConflict, gin.H{"msg": "Email already exists"})
				return
			}
		}
		if newUsername != user.Username {
			var t models.User
			if err := db.Where("username = ?", newUsername).First(&t).Error; err == nil {
				c.JSON(http.StatusConflict, gin.H{"msg": "Username already exists"})
				return
			}
		}

		user.Email = newEmail
		user.Username = newUsername
		if body.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*body.DisplayName)
		}
		if body.Signature != nil {
			user.Signature = strings.TrimSpace(*body.Signature)
		}
		if body.Password != "" {
			if problem := utils.PasswordProblem(body.Password); problem != "" {
				c.JSON(http.StatusBadRequest, gin.H{"msg": problem})
				return
			}
			if err := user.SetPassword(body.Password); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
				return
			}
		}
		if err := db.Save(user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update profile"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"msg": "Profile updated successfully"})
	}
}
