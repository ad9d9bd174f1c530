package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Database connection
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_SSLMODE"),
		os.Getenv("DB_TIMEZONE"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Check if geometry_mode column exists
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.columns
			WHERE table_name = 'annotations'
			AND column_name = 'geometry_mode'
		)
	`
	if err := db.Raw(query).Scan(&exists).Error; err != nil {
		log.Fatal("Failed to check geometry_mode column:", err)
	}

	fmt.Printf("📊 geometry_mode column exists: %v\n", exists)
	fmt.Println()

	if !exists {
		fmt.Println("❌ geometry_mode column does NOT exist!")
		fmt.Println("⚠️  Need to run migration to add geometry_mode column")
		return
	}

	// Get column info
	type ColumnInfo struct {
		ColumnName    string
		DataType      string
		ColumnDefault *string
		IsNullable    string
	}
	var colInfo ColumnInfo
	query = `
		SELECT column_name, data_type, column_default, is_nullable
		FROM information_schema.columns
		WHERE table_name = 'annotations'
		AND column_name = 'geometry_mode'
	`
	if err := db.Raw(query).Scan(&colInfo).Error; err != nil {
		log.Fatal("Failed to get column info:", err)
	}

	fmt.Println("📋 Column Information:")
	fmt.Printf("  - Name: %s\n", colInfo.ColumnName)
	fmt.Printf("  - Type: %s\n", colInfo.DataType)
	if colInfo.ColumnDefault != nil {
		fmt.Printf("  - Default: %s\n", *colInfo.ColumnDefault)
	} else {
		fmt.Println("  - Default: NULL")
	}
	fmt.Printf("  - Nullable: %s\n", colInfo.IsNullable)
	fmt.Println()

	// Get geometry mode statistics
	type GeometryStats struct {
		Total      int64
		Normalized int64
		Legacy     int64
		Unsynced   int64
	}
	var stats GeometryStats
	query = `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN geometry_mode = 'normalized' THEN 1 END) as normalized,
			COUNT(CASE WHEN geometry_mode = 'legacy_absolute' THEN 1 END) as legacy,
			COUNT(CASE WHEN synced = false THEN 1 END) as unsynced
		FROM annotations
	`
	if err := db.Raw(query).Scan(&stats).Error; err != nil {
		log.Fatal("Failed to get statistics:", err)
	}

	fmt.Println("📈 Annotation Geometry Statistics:")
	fmt.Printf("  - Total annotations: %d\n", stats.Total)
	fmt.Printf("  - normalized: %d\n", stats.Normalized)
	fmt.Printf("  - legacy_absolute: %d\n", stats.Legacy)
	fmt.Printf("  - unsynced: %d\n", stats.Unsynced)
	fmt.Println()

	// Legacy annotations per document
	type DocumentInfo struct {
		DocumentID int64
		Name       string
		Legacy     int64
		Layers     int64
	}
	var docs []DocumentInfo
	query = `
		SELECT d.id as document_id, d.name,
			COUNT(a.id) as legacy,
			(SELECT COUNT(*) FROM page_text_layers l WHERE l.document_id = d.id) as layers
		FROM documents d
		JOIN annotations a ON a.document_id = d.id AND a.geometry_mode = 'legacy_absolute'
		GROUP BY d.id, d.name
		ORDER BY legacy DESC
		LIMIT 10
	`
	if err := db.Raw(query).Scan(&docs).Error; err != nil {
		log.Fatal("Failed to get per-document breakdown:", err)
	}

	fmt.Println("📚 Documents with legacy annotations (top 10):")
	if len(docs) == 0 {
		fmt.Println("  - none, all annotations are normalized")
	}
	for _, d := range docs {
		fmt.Printf("  - Document: %d (%s), Legacy: %d, Cached text layers: %d\n",
			d.DocumentID, d.Name, d.Legacy, d.Layers)
	}
}
