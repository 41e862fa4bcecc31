package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const captchaSessionKey = "captcha_answer"

type AuthHandler struct {
	accounts       *services.AccountService
	captchaService *services.CaptchaService
	log            *logrus.Logger
}

func NewAuthHandler(accounts *services.AccountService, captcha *services.CaptchaService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, captchaService: captcha, log: log}
}

type signupRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Captcha  string `json:"captcha" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Captcha issues a new signup challenge and stores its answer in the session.
func (h *AuthHandler) Captcha(c *gin.Context) {
	question, answer := h.captchaService.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	if err := session.Save(); err != nil {
		RespondError(c, h.log, "captcha", 0, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": question})
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	// 验证码只能用一次
	session := sessions.Default(c)
	expected, ok := session.Get(captchaSessionKey).(int)
	session.Delete(captchaSessionKey)
	_ = session.Save()
	if !ok || !services.CheckCaptcha(req.Captcha, expected) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.KindValidation,
			"message": "invalid input",
			"fields":  map[string]string{"captcha": "is incorrect"},
		})
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		RespondError(c, h.log, "signup", 0, err)
		return
	}

	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		RespondError(c, h.log, "signup", user.ID, err)
		return
	}
	c.JSON(http.StatusCreated, services.IdentityOf(user))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, h.log, "login", 0, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		RespondError(c, h.log, "login", user.ID, err)
		return
	}
	c.JSON(http.StatusOK, services.IdentityOf(user))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	if id == nil {
		RespondError(c, h.log, "me", 0, services.ErrUnauthenticated())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         id,
		"unread_count": middleware.UnreadCount(c),
	})
}
