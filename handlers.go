package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"prodfeed/ingest"
	"prodfeed/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// maxFeedSize is the hard cap on one uploaded feed file.
const maxFeedSize = 100 << 20

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/file-uploads", uploadFeedHandler)
	authGroup.GET("/file-uploads", listUploadsHandler)
	authGroup.GET("/file-uploads/:id", getUploadHandler)
	authGroup.DELETE("/file-uploads/:id", deleteUploadHandler)
	authGroup.GET("/products", listProductsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		c.Set("username", username)
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// uploadFeedHandler accepts a multipart product feed and hands it to intake.
// Duplicate content is reported with 200 instead of 201; processing happens
// asynchronously either way.
func uploadFeedHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxFeedSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 100MB)"})
		return
	}
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".csv", ".txt":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type (want .csv or .txt)"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer src.Close()

	res, err := ingestIntake.Submit(file.Filename, src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept upload"})
		return
	}
	payload := uploadStatusPayload(&res.Upload)
	if res.Reused {
		c.JSON(http.StatusOK, gin.H{"message": "file already uploaded, queued for reprocessing", "data": payload})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "file uploaded, queued for processing", "data": payload})
}

func uploadStatusPayload(up *models.FileUpload) gin.H {
	return gin.H{
		"id":                  up.ID,
		"file_name":           up.FileName,
		"status":              up.Status,
		"total_rows":          up.TotalRows,
		"processed_rows":      up.ProcessedRows,
		"progress_percentage": up.ProgressPercentage(),
		"error_message":       up.ErrorMessage,
		"created_at":          up.CreatedAt,
		"updated_at":          up.UpdatedAt,
	}
}

// listUploadsHandler returns upload records newest first, optionally filtered
// by status, with page/per_page pagination.
func listUploadsHandler(c *gin.Context) {
	page, perPage := paginationParams(c, 15)

	q := db.Model(&models.FileUpload{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var uploads []models.FileUpload
	if err := q.Order("created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&uploads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	data := make([]gin.H, 0, len(uploads))
	for i := range uploads {
		data = append(data, uploadStatusPayload(&uploads[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "pagination": paginationMeta(total, page, perPage)})
}

// getUploadHandler is the status endpoint clients poll while a feed processes.
func getUploadHandler(c *gin.Context) {
	id := c.Param("id")
	var up models.FileUpload
	if err := db.First(&up, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	c.JSON(http.StatusOK, uploadStatusPayload(&up))
}

// deleteUploadHandler removes the upload record and its stored file. Catalog
// rows created from the feed stay; they belong to the catalog, not the upload.
func deleteUploadHandler(c *gin.Context) {
	id := c.Param("id")
	var up models.FileUpload
	if err := db.First(&up, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	if up.Status == models.StatusProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "upload is processing"})
		return
	}
	if err := ingestStore.Remove(up.StorePath); err != nil && !errors.Is(err, ingest.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove stored file"})
		return
	}
	if err := db.Delete(&up).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete upload"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "upload deleted"})
}

// listProductsHandler pages through the catalog, optionally filtered by
// style_number or unique_key.
func listProductsHandler(c *gin.Context) {
	page, perPage := paginationParams(c, 50)

	q := db.Model(&models.Product{})
	if style := c.Query("style_number"); style != "" {
		q = q.Where("style_number = ?", style)
	}
	if key := c.Query("unique_key"); key != "" {
		q = q.Where("unique_key = ?", key)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var products []models.Product
	if err := q.Order("id").Offset((page - 1) * perPage).Limit(perPage).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products, "pagination": paginationMeta(total, page, perPage)})
}

func paginationParams(c *gin.Context, defaultPerPage int) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 || perPage > 200 {
		perPage = defaultPerPage
	}
	return page, perPage
}

func paginationMeta(total int64, page, perPage int) gin.H {
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return gin.H{
		"total":        total,
		"per_page":     perPage,
		"current_page": page,
		"last_page":    lastPage,
	}
}
