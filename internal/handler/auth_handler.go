package handler

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"time"

	"trainhub/internal/model"
	"trainhub/pkg/database"
	"trainhub/pkg/jwtutil"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// otpCodeTTL is set from configuration at startup.
var otpCodeTTL = 10 * time.Minute

// SetOTPCodeTTL configures the one-time-code lifetime.
func SetOTPCodeTTL(ttl time.Duration) {
	if ttl > 0 {
		otpCodeTTL = ttl
	}
}

// Register creates a new account with the user role
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "register")

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		CompanyName string `json:"company_name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		log.Error("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	// Check if the account already exists
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.Account
	result := database.GetDB().Where("email = ?", req.Email).First(&existing)
	if result.Error == nil {
		log.Error("Account already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	account := model.Account{
		Email:       req.Email,
		Password:    string(hashedPassword),
		CompanyName: req.CompanyName,
		Role:        model.RoleUser,
		Active:      true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&account); result.Error != nil {
		log.Error("Failed to create account", zap.Error(result.Error))
		prometheus.RecordAuthError("account_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("Account registered", zap.String("email", account.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Account registered successfully",
		"account": map[string]interface{}{
			"id":    account.ID,
			"email": account.Email,
			"role":  account.Role,
		},
	})
}

// Login authenticates an account and issues a JWT
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var account model.Account
	result := database.GetDB().Where("email = ?", req.Email).First(&account)
	if result.Error != nil {
		log.Error("Account not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("account_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		log.Error("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Soft-disabled accounts keep their data but cannot sign in
	if !account.Active {
		log.Warn("Disabled account attempted login", zap.String("email", req.Email))
		prometheus.RecordAuthError("account_disabled")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is disabled"})
	}

	token, err := jwtutil.GenerateToken(account.Email, account.ID, account.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Account logged in",
		zap.String("email", account.Email),
		zap.Uint("account_id", account.ID),
		zap.String("role", account.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"account": map[string]interface{}{
			"id":           account.ID,
			"email":        account.Email,
			"company_name": account.CompanyName,
			"role":         account.Role,
		},
	})
}

// ChangePassword updates the caller's password after verifying the current one
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "change_password")

	accountID, ok := c.Get("account_id").(uint)
	if !ok {
		log.Error("Failed to get account ID from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse change password request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new password is required"})
	}

	var account model.Account
	if result := database.GetDB().First(&account, accountID); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", accountID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.CurrentPassword)); err != nil {
		log.Error("Current password mismatch", zap.Uint("account_id", accountID))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&account).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to update password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}

	log.Info("Password changed", zap.Uint("account_id", accountID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

// RequestOTP issues a one-time code for password reset. The response is the
// same whether or not the email exists so the endpoint cannot be used to
// probe for accounts.
func RequestOTP(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("otp", "request")

	var req struct {
		Email string `json:"email"`
	}

	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	var account model.Account
	result := database.GetDB().Where("email = ?", req.Email).First(&account)
	if result.Error != nil {
		log.Info("OTP requested for unknown email", zap.String("email", req.Email))
		return c.JSON(http.StatusOK, echo.Map{"message": "If the email exists, a code has been sent"})
	}

	code, err := generateOTPCode()
	if err != nil {
		log.Error("Failed to generate OTP code", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate code"})
	}

	otp := model.OTPCode{
		AccountID: account.ID,
		Code:      code,
		Purpose:   model.OTPPurposePasswordReset,
		ExpiresAt: time.Now().UTC().Add(otpCodeTTL),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&otp); result.Error != nil {
		log.Error("Failed to store OTP code", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate code"})
	}

	// Mail delivery is handled out of band; the code is logged at debug
	// level for development environments only.
	log.Debug("OTP code issued",
		zap.Uint("account_id", account.ID),
		zap.String("code", code))

	log.Info("OTP code issued", zap.Uint("account_id", account.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "If the email exists, a code has been sent"})
}

// VerifyOTP consumes a one-time code and resets the account password
func VerifyOTP(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("otp", "verify")

	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}

	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, code and new_password are required"})
	}

	var account model.Account
	if result := database.GetDB().Where("email = ?", req.Email).First(&account); result.Error != nil {
		prometheus.RecordAuthError("otp_unknown_email")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
	}

	var otp model.OTPCode
	result := database.GetDB().
		Where("account_id = ? AND code = ? AND purpose = ? AND consumed = ? AND expires_at > ?",
			account.ID, req.Code, model.OTPPurposePasswordReset, false, time.Now().UTC()).
		First(&otp)
	if result.Error != nil {
		log.Warn("Invalid or expired OTP code", zap.Uint("account_id", account.ID))
		prometheus.RecordAuthError("otp_invalid")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&otp).Update("consumed", true).Error; err != nil {
		log.Error("Failed to consume OTP code", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	if err := database.GetDB().Model(&account).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to reset password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}

	log.Info("Password reset via OTP", zap.Uint("account_id", account.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}

// generateOTPCode returns a 6-digit numeric one-time code
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := n.Int64()
	digits := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + code%10)
		code /= 10
	}
	return string(digits), nil
}
