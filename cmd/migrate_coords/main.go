package main

import (
	"log"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"pdfreader-backend/internal/annotation"
	"pdfreader-backend/internal/database"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/service"
)

// 저장된 legacy_absolute 주석을 텍스트 레이어 기반으로 normalized 좌표로 일괄 변환한다.
// 텍스트를 찾지 못한 주석은 그대로 두고 건너뛴다.
func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Connect to database
	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connected. Starting coordinate migration...")

	layers := service.NewTextLayerService(db)

	// 1. Find documents that still carry legacy annotations
	var documentIDs []int64
	if err := db.Model(&model.Annotation{}).
		Where("geometry_mode = ?", model.GeometryLegacyAbsolute).
		Distinct("document_id").
		Pluck("document_id", &documentIDs).Error; err != nil {
		log.Fatalf("Failed to list documents: %v", err)
	}

	log.Printf("Found %d documents with legacy annotations.\n", len(documentIDs))

	var migrated, skipped int

	for _, documentID := range documentIDs {
		var doc model.Document
		if err := db.First(&doc, documentID).Error; err != nil {
			log.Printf("⚠️ Document %d not found, skipping: %v\n", documentID, err)
			continue
		}

		// 2. Collect the pages that need repair
		var pages []int
		if err := db.Model(&model.Annotation{}).
			Where("document_id = ? AND geometry_mode = ?", documentID, model.GeometryLegacyAbsolute).
			Distinct("page_number").
			Pluck("page_number", &pages).Error; err != nil {
			log.Printf("⚠️ Failed to list pages for document %d: %v\n", documentID, err)
			continue
		}

		for _, page := range pages {
			layer, err := layers.GetLayer(&doc, page)
			if err != nil {
				log.Printf("⚠️ No text layer for document %d page %d: %v\n", documentID, page, err)
				continue
			}

			var records []*model.Annotation
			if err := db.Where("document_id = ? AND page_number = ?", documentID, page).
				Order("created_at ASC, id ASC").
				Find(&records).Error; err != nil {
				log.Printf("⚠️ Failed to load annotations for document %d page %d: %v\n", documentID, page, err)
				continue
			}

			legacyBefore := make(map[string]bool, len(records))
			for _, rec := range records {
				if isLegacy(rec) {
					legacyBefore[rec.ID] = true
				}
			}

			validated, repaired := annotation.ValidatePage(records, layer)
			if repaired == 0 {
				skipped += len(legacyBefore)
				continue
			}

			// 3. Persist repaired records in a single transaction per page
			err = db.Transaction(func(tx *gorm.DB) error {
				for _, rec := range validated {
					if !wasRepaired(rec, legacyBefore[rec.ID]) {
						continue
					}
					if err := tx.Model(&model.Annotation{}).
						Where("id = ?", rec.ID).
						Updates(map[string]interface{}{
							"geometry_mode": rec.GeometryMode,
							"geometry":      rec.Geometry,
							"metadata":      rec.Metadata,
							"synced":        true,
						}).Error; err != nil {
						return err
					}
					migrated++
				}
				return nil
			})
			if err != nil {
				log.Fatalf("Failed to migrate document %d page %d: %v", documentID, page, err)
			}

			skipped += len(legacyBefore) - repaired
			log.Printf("Migrated %d annotations on document %d page %d\n", repaired, documentID, page)
		}
	}

	log.Printf("Coordinate migration finished: %d migrated, %d left as legacy.\n", migrated, skipped)
}

// isLegacy 저장된 좌표가 절대 픽셀 모드인지 확인
func isLegacy(rec *model.Annotation) bool {
	return rec.GeometryMode == model.GeometryLegacyAbsolute.String()
}

// wasRepaired 검증 전 legacy였던 레코드가 normalized로 변환되었는지 확인
func wasRepaired(rec *model.Annotation, wasLegacy bool) bool {
	return wasLegacy && rec.GeometryMode == model.GeometryNormalized.String()
}
