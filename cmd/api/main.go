package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/driftline/attachkit/internal/auth"
	"github.com/driftline/attachkit/internal/handlers"
	"github.com/driftline/attachkit/internal/preview"
	"github.com/driftline/attachkit/internal/transport"
	"github.com/driftline/attachkit/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Initialize environment variables
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file", err)
	}
	accountID := os.Getenv("ACCOUNT_ID")
	accessKeyID := os.Getenv("ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("ACCESS_KEY_SECRET")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Chi
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Session store
	secretKey := os.Getenv("SESSION_SECRET_KEY")
	maxAge := 86400 * 30
	isProd := false
	store := sessions.NewCookieStore([]byte(secretKey))
	store.MaxAge(maxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = isProd
	auth.Store = store

	// Database connection
	dsn := os.Getenv("DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate models
	if err := db.AutoMigrate(
		models.User{},
		models.Order{},
		models.OrderLineItem{},
		models.ProductDraft{},
		models.ProductImage{},
	); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}

	// Create custom HTTP client with TLS config
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		},
	}
	httpClient := &http.Client{Transport: tr}

	// AWS S3 configuration (Cloudflare R2 endpoint)
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithHTTPClient(httpClient),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		log.Fatal("ERR CONFIG:", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
	})

	// Upload engine collaborators
	uploader := transport.NewS3Uploader(client, os.Getenv("BUCKET_NAME"), os.Getenv("PUBLIC_URL"), logger)
	previewDir := os.Getenv("PREVIEW_DIR")
	if previewDir == "" {
		previewDir = os.TempDir() + "/attachkit-previews"
	}
	previewer, err := preview.NewDiskGenerator(previewDir)
	if err != nil {
		log.Fatalf("Failed to create preview dir: %v", err)
	}
	env := handlers.NewEnv(db, uploader, previewer, logger)

	// Session login for the dashboard
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		handlers.UserLoginHandler(w, r, db)
	})

	// Available API routes for authenticated users
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.UserMiddleware)
		r.Use(httprate.Limit(
			60,
			1*time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		))
		r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetUserHandler(w, r, db)
		})

		// Attachment surfaces: line-item artwork, order-detail artwork
		// and mockup dialogs, product draft images.
		r.Route("/records/{id}/{surface}", func(r chi.Router) {
			r.Post("/", env.UploadAttachmentHandler)
			r.Get("/", env.ListAttachmentsHandler)
			r.Delete("/{attachmentID}", env.DeleteAttachmentHandler)
			r.Post("/{attachmentID}/reupload", env.ReuploadAttachmentHandler)
			r.Post("/submit-check", env.SubmitCheckHandler)
		})
	})

	log.Println("Starting API server on :3000")
	log.Fatal(http.ListenAndServe(":3000", r))
}
