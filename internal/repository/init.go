package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/config"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/services/storage"
)

type Repositories struct {
	AccountRepository     interfaces.AccountRepository
	FolderRepository      interfaces.FolderRepository
	MessageRepository     interfaces.MessageRepository
	AttachmentRepository  interfaces.AttachmentRepository
	SenderTrustRepository interfaces.SenderTrustRepository
	SyncRunRepository     interfaces.SyncRunRepository

	// AttachmentStorage holds the object store backing attachment blobs.
	AttachmentStorage interfaces.StorageService
}

func InitRepositories(db *gorm.DB, r2Config *config.R2StorageConfig) *Repositories {
	attachmentStorage := storage.NewR2StorageService(
		r2Config.AccountID,
		r2Config.AccessKeyID,
		r2Config.AccessKeySecret,
		r2Config.AttachmentBucket,
		false, // private access
	)

	return &Repositories{
		AccountRepository:     NewAccountRepository(db),
		FolderRepository:      NewFolderRepository(db),
		MessageRepository:     NewMessageRepository(db),
		AttachmentRepository:  NewAttachmentRepository(db, attachmentStorage),
		SenderTrustRepository: NewSenderTrustRepository(db),
		SyncRunRepository:     NewSyncRunRepository(db),
		AttachmentStorage:     attachmentStorage,
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Account{},
		&models.Folder{},
		&models.Message{},
		&models.Attachment{},
		&models.SenderTrust{},
		&models.SyncRun{},
	)

	sqlDB.Close()

	sqlDB, _ = db.DB()
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
