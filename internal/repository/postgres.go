package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ysatyn/messages-bot/internal/models"
	"github.com/ysatyn/messages-bot/pkg/logger"
	"github.com/ysatyn/messages-bot/pkg/refcode"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Account{}, &models.Note{}, &models.Panel{}, &models.Payment{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) GetAccount(userID int64) (*models.Account, error) {
	var account models.Account
	if err := db.Conn.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %s", err)
	}

	return &account, nil
}

func (db *PostgresDB) GetAccountByRefCode(code string) (*models.Account, error) {
	var account models.Account
	if err := db.Conn.Where("ref_code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by referral code: %s", err)
	}

	return &account, nil
}

// refCodeTaken reports whether any account already carries the given code.
func (db *PostgresDB) refCodeTaken(code string) (bool, error) {
	var count int64
	if err := db.Conn.Model(&models.Account{}).Where("ref_code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check referral code: %s", err)
	}
	return count > 0, nil
}

// UpsertAccount creates the account on first contact and refreshes the
// profile fields on every later one. The referral code is assigned once.
func (db *PostgresDB) UpsertAccount(userID int64, username, firstName, lastName string) (*models.Account, error) {
	account, err := db.GetAccount(userID)
	if err == nil {
		account.Username = username
		account.FirstName = firstName
		account.LastName = lastName
		if err := db.Conn.Save(account).Error; err != nil {
			return nil, fmt.Errorf("failed to update account: %s", err)
		}
		return account, nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, err
	}

	code, err := refcode.Generate(userID, db.refCodeTaken)
	if err != nil {
		return nil, fmt.Errorf("failed to generate referral code: %s", err)
	}

	account = &models.Account{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		RefCode:   code,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.Conn.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %s", err)
	}

	return account, nil
}

// ReplaceRefCode regenerates the referral code of an account. The old code
// is still registered during generation, so the new one always differs.
func (db *PostgresDB) ReplaceRefCode(userID int64) (string, error) {
	account, err := db.GetAccount(userID)
	if err != nil {
		return "", err
	}

	code, err := refcode.Generate(userID, db.refCodeTaken)
	if err != nil {
		return "", fmt.Errorf("failed to generate referral code: %s", err)
	}

	account.RefCode = code
	if err := db.Conn.Save(account).Error; err != nil {
		return "", fmt.Errorf("failed to update referral code: %s", err)
	}

	return code, nil
}

// CreateNote inserts a note, superseding a previous one for the same
// (author, recipient) pair inside the same transaction.
func (db *PostgresDB) CreateNote(forUserID int64, text string, createdByUserID int64) (*models.Note, error) {
	note := &models.Note{
		ForUserID:       forUserID,
		Text:            text,
		CreatedByUserID: createdByUserID,
		CreatedAt:       time.Now().Unix(),
	}

	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_by_user_id = ? AND for_user_id = ?", createdByUserID, forUserID).
			Delete(&models.Note{}).Error; err != nil {
			return err
		}
		return tx.Create(note).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %s", err)
	}

	return note, nil
}

func (db *PostgresDB) GetNote(noteID int64) (*models.Note, error) {
	var note models.Note
	if err := db.Conn.Where("id = ?", noteID).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %s", err)
	}

	return &note, nil
}

func (db *PostgresDB) GetNoteForPair(forUserID, createdByUserID int64) (*models.Note, error) {
	var note models.Note
	if err := db.Conn.Where("for_user_id = ? AND created_by_user_id = ?", forUserID, createdByUserID).
		Order("created_at DESC").First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note for pair: %s", err)
	}

	return &note, nil
}

func (db *PostgresDB) ListNotesByAuthor(userID int64) ([]*models.Note, error) {
	var notes []*models.Note
	if err := db.Conn.Where("created_by_user_id = ?", userID).Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("failed to list notes: %s", err)
	}

	return notes, nil
}

func (db *PostgresDB) UpdateNoteText(noteID int64, text string) (*models.Note, error) {
	note, err := db.GetNote(noteID)
	if err != nil {
		return nil, err
	}

	note.Text = text
	if err := db.Conn.Save(note).Error; err != nil {
		return nil, fmt.Errorf("failed to update note text: %s", err)
	}

	return note, nil
}

func (db *PostgresDB) DeleteNote(noteID int64) (bool, error) {
	result := db.Conn.Where("id = ?", noteID).Delete(&models.Note{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete note: %s", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// MarkNoteRead sets both read flags. The true flag never goes back to false;
// the shown flag can later be reset through SpendReadCancel.
func (db *PostgresDB) MarkNoteRead(noteID int64) error {
	result := db.Conn.Model(&models.Note{}).Where("id = ?", noteID).
		Updates(map[string]interface{}{"is_read": true, "shown_read": true})
	if result.Error != nil {
		return fmt.Errorf("failed to mark note as read: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNoteNotFound
	}

	return nil
}

// SpendReadCancel decrements the account balance and hides the displayed
// read flag as one unit. The conditional decrement keeps the balance from
// ever going negative under concurrent spends.
func (db *PostgresDB) SpendReadCancel(userID, noteID int64) error {
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Account{}).
			Where("user_id = ? AND read_cancel_balance > 0", userID).
			UpdateColumn("read_cancel_balance", gorm.Expr("read_cancel_balance - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrNoCredits
		}

		result = tx.Model(&models.Note{}).Where("id = ?", noteID).Update("shown_read", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrNoteNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNoCredits) || errors.Is(err, models.ErrNoteNotFound) {
			return err
		}
		return fmt.Errorf("failed to spend read-cancel credit: %s", err)
	}

	return nil
}

// ApplyPurchase credits the buyer and moves the panel counters in one
// transaction, keyed by the provider charge id. A replayed confirmation hits
// the payments primary key and changes nothing.
func (db *PostgresDB) ApplyPurchase(chargeID string, userID, quantity, totalAmount int64) error {
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		payment := &models.Payment{
			ChargeID:    chargeID,
			UserID:      userID,
			Quantity:    quantity,
			TotalAmount: totalAmount,
			CreatedAt:   time.Now().Unix(),
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(payment)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrDuplicatePayment
		}

		result = tx.Model(&models.Account{}).Where("user_id = ?", userID).
			UpdateColumn("read_cancel_balance", gorm.Expr("read_cancel_balance + ?", quantity))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrAccountNotFound
		}

		var panel models.Panel
		if err := tx.First(&panel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrPanelNotFound
			}
			return err
		}
		return tx.Model(&panel).UpdateColumns(map[string]interface{}{
			"total_earnings":     gorm.Expr("total_earnings + ?", totalAmount),
			"total_credits_sold": gorm.Expr("total_credits_sold + ?", quantity),
		}).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicatePayment) || errors.Is(err, models.ErrAccountNotFound) || errors.Is(err, models.ErrPanelNotFound) {
			return err
		}
		return fmt.Errorf("failed to apply purchase: %s", err)
	}

	return nil
}

// EnsurePanel creates the singleton panel row if it is missing and refreshes
// the restart timestamp either way.
func (db *PostgresDB) EnsurePanel(adminUserID int64) error {
	var panel models.Panel
	err := db.Conn.First(&panel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		panel = models.Panel{
			AdminUserID: adminUserID,
			LastRestart: time.Now().Unix(),
		}
		if err := db.Conn.Create(&panel).Error; err != nil {
			return fmt.Errorf("failed to create panel: %s", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get panel: %s", err)
	}

	if err := db.Conn.Model(&panel).Update("last_restart", time.Now().Unix()).Error; err != nil {
		return fmt.Errorf("failed to refresh panel restart time: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetPanel() (*models.Panel, error) {
	var panel models.Panel
	if err := db.Conn.First(&panel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPanelNotFound
		}
		return nil, fmt.Errorf("failed to get panel: %s", err)
	}

	return &panel, nil
}
