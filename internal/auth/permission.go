package auth

import (
	"errors"

	"gorm.io/gorm"
)

var ErrDocumentNotOwned = errors.New("document not owned by user")

// CheckDocumentAccess 문서 접근 권한 확인 - 소유자만 접근 가능
func CheckDocumentAccess(db *gorm.DB, documentID, userID int64) error {
	var ownerID int64
	err := db.Table("documents").Where("id = ?", documentID).Select("owner_id").Scan(&ownerID).Error
	if err != nil {
		return err
	}
	if ownerID == 0 {
		return gorm.ErrRecordNotFound
	}
	if ownerID != userID {
		return ErrDocumentNotOwned
	}
	return nil
}
