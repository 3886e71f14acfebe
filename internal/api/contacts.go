package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"whatsapp-hub/internal/campaign"
	"whatsapp-hub/internal/models"
)

const defaultPerPage = 20

var (
	ErrContactExists   = errors.New("contact already exists")
	ErrContactNotFound = errors.New("contact not found")
)

// ContactView is a contact row enriched with the delivery status derived
// from the message log.
type ContactView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
	LastSent string `json:"last_sent"`
}

type ContactPage struct {
	Contacts      []ContactView `json:"contacts"`
	Page          int           `json:"page"`
	PerPage       int           `json:"per_page"`
	TotalContacts int64         `json:"total_contacts"`
	TotalPages    int           `json:"total_pages"`
	HasPrev       bool          `json:"has_prev"`
	HasNext       bool          `json:"has_next"`
}

type ContactStats struct {
	Total            int64 `json:"total"`
	Pending          int64 `json:"pending"`
	Sent             int64 `json:"sent"`
	Failed           int64 `json:"failed"`
	TotalMessages    int64 `json:"total_messages"`
	MessagesToday    int64 `json:"messages_today"`
	ContactsThisWeek int64 `json:"contacts_this_week"`
}

type ImportStats struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// ContactStore owns all contact persistence for the API layer.
type ContactStore struct {
	DB *gorm.DB
}

func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{DB: db}
}

func (s *ContactStore) List(userID uint, page, perPage int, search string) (*ContactPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	query := func() *gorm.DB {
		q := s.DB.Model(&models.Contact{}).Where("user_id = ?", userID)
		if search != "" {
			like := "%" + search + "%"
			q = q.Where("name LIKE ? OR phone LIKE ?", like, like)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, err
	}

	var contacts []models.Contact
	if err := query().Order("name ASC, id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&contacts).Error; err != nil {
		return nil, err
	}

	views, err := s.withDeliveryStatus(userID, contacts)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return &ContactPage{
		Contacts:      views,
		Page:          page,
		PerPage:       perPage,
		TotalContacts: total,
		TotalPages:    totalPages,
		HasPrev:       page > 1,
		HasNext:       page < totalPages,
	}, nil
}

// withDeliveryStatus folds the message log into each contact row: a contact
// with at least one logged message shows as sent along with its last send
// time, everything else stays pending.
func (s *ContactStore) withDeliveryStatus(userID uint, contacts []models.Contact) ([]ContactView, error) {
	views := make([]ContactView, 0, len(contacts))
	if len(contacts) == 0 {
		return views, nil
	}

	phones := make([]string, len(contacts))
	for i, contact := range contacts {
		phones[i] = contact.Phone
	}

	type lastSentRow struct {
		Phone    string
		LastSent time.Time
	}
	var rows []lastSentRow
	err := s.DB.Model(&models.Message{}).
		Select("phone, MAX(timestamp) AS last_sent").
		Where("user_id = ? AND phone IN ?", userID, phones).
		Group("phone").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lastSent := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		lastSent[row.Phone] = row.LastSent
	}

	for _, contact := range contacts {
		view := ContactView{
			ID:       contact.ID,
			Name:     contact.Name,
			Phone:    contact.Phone,
			Status:   "pending",
			LastSent: "Never",
		}
		if at, ok := lastSent[contact.Phone]; ok {
			view.Status = "sent"
			view.LastSent = at.Format("2006-01-02 15:04:05")
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ContactStore) Stats(userID uint) (*ContactStats, error) {
	stats := &ContactStats{}

	if err := s.DB.Model(&models.Contact{}).Where("user_id = ?", userID).
		Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	messaged := s.DB.Model(&models.Message{}).Select("DISTINCT phone").Where("user_id = ?", userID)
	if err := s.DB.Model(&models.Message{}).Where("user_id = ?", userID).
		Distinct("phone").Count(&stats.Sent).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND phone NOT IN (?)", userID, messaged).
		Count(&stats.Pending).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND status = ?", userID, "failed").
		Count(&stats.Failed).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Message{}).Where("user_id = ?", userID).
		Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.DB.Model(&models.Message{}).
		Where("user_id = ? AND timestamp >= ?", userID, startOfDay).
		Count(&stats.MessagesToday).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND created_at >= ?", userID, now.AddDate(0, 0, -7)).
		Count(&stats.ContactsThisWeek).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *ContactStore) Add(userID uint, name, phone string) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return errors.New("Name and phone are required")
	}
	if !validatePhone(phone) {
		return fmt.Errorf("invalid phone number: %s", phone)
	}

	var count int64
	if err := s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND phone = ?", userID, phone).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrContactExists
	}

	return s.DB.Create(&models.Contact{
		UserID: userID,
		Name:   name,
		Phone:  phone,
		Status: "pending",
	}).Error
}

func (s *ContactStore) Update(contactID, userID uint, name, phone string) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return errors.New("Name and phone are required")
	}

	result := s.DB.Model(&models.Contact{}).
		Where("id = ? AND user_id = ?", contactID, userID).
		Updates(map[string]interface{}{"name": name, "phone": phone})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (s *ContactStore) Delete(contactID, userID uint) error {
	result := s.DB.Where("id = ? AND user_id = ?", contactID, userID).Delete(&models.Contact{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (s *ContactStore) DeleteMany(contactIDs []uint, userID uint) (int64, error) {
	if len(contactIDs) == 0 {
		return 0, errors.New("No contacts selected")
	}
	result := s.DB.Where("id IN ? AND user_id = ?", contactIDs, userID).Delete(&models.Contact{})
	return result.RowsAffected, result.Error
}

// ImportCSV reads name,phone rows and adds each one, tallying how many were
// new, already present, or unusable.
func (s *ContactStore) ImportCSV(userID uint, r io.Reader) (*ImportStats, error) {
	rows, err := parseContactsCSV(r)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{}
	for _, row := range rows {
		if row.Name == "" || row.Phone == "" {
			stats.Errors++
			continue
		}
		switch err := s.Add(userID, row.Name, row.Phone); {
		case err == nil:
			stats.Added++
		case errors.Is(err, ErrContactExists):
			stats.Duplicates++
		default:
			stats.Errors++
		}
	}
	return stats, nil
}

// Export returns every contact for the user ordered the way the list shows
// them.
func (s *ContactStore) Export(userID uint) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.DB.Where("user_id = ?", userID).Order("name ASC, id DESC").Find(&contacts).Error
	return contacts, err
}

// ForCampaign resolves a recipient selection into the contact batch a
// campaign will target.
func (s *ContactStore) ForCampaign(userID uint, recipientType string, selected []string) ([]campaign.Contact, error) {
	query := s.DB.Model(&models.Contact{}).Where("user_id = ?", userID)

	switch recipientType {
	case "selected":
		query = query.Where("phone IN ?", selected)
	case "pending":
		messaged := s.DB.Model(&models.Message{}).Select("DISTINCT phone").Where("user_id = ?", userID)
		query = query.Where("phone NOT IN (?)", messaged)
	}

	var contacts []models.Contact
	if err := query.Order("id ASC").Find(&contacts).Error; err != nil {
		return nil, err
	}

	batch := make([]campaign.Contact, len(contacts))
	for i, contact := range contacts {
		batch[i] = campaign.Contact{Name: contact.Name, Phone: contact.Phone}
	}
	return batch, nil
}

type csvRow struct {
	Name  string
	Phone string
}

// parseContactsCSV accepts a header-addressed CSV with name and phone
// columns in any order. Rows missing either field come back with the empty
// value so the importer can count them as errors.
func parseContactsCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing CSV header: %w", err)
	}

	nameIdx, phoneIdx := -1, -1
	for i, col := range header {
		// tolerate a UTF-8 BOM on the first column
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")))
		switch col {
		case "name":
			nameIdx = i
		case "phone":
			phoneIdx = i
		}
	}
	if nameIdx < 0 || phoneIdx < 0 {
		return nil, errors.New("CSV must have name and phone columns")
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row csvRow
		if nameIdx < len(record) {
			row.Name = strings.TrimSpace(record[nameIdx])
		}
		if phoneIdx < len(record) {
			row.Phone = strings.TrimSpace(record[phoneIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type ContactHandler struct {
	Store *ContactStore
}

func NewContactHandler(store *ContactStore) *ContactHandler {
	return &ContactHandler{Store: store}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	search := strings.TrimSpace(c.Query("search"))

	result, err := h.Store.List(userID, page, perPage, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load contacts"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ContactHandler) GetStats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.Store.Stats(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type createContactRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	switch err := h.Store.Add(req.UserID, req.Name, req.Phone); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact added successfully"})
	case errors.Is(err, ErrContactExists):
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Contact already exists or failed to save"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	}
}

type updateContactRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	contactID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid contact id"})
		return
	}

	var req updateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	switch err := h.Store.Update(uint(contactID), req.UserID, req.Name, req.Phone); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact updated successfully"})
	case errors.Is(err, ErrContactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Contact not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	}
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	contactID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid contact id"})
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	switch err := h.Store.Delete(uint(contactID), userID); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact deleted successfully"})
	case errors.Is(err, ErrContactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Contact not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete contact"})
	}
}

type deleteContactsRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	IDs    []uint `json:"ids"`
}

func (h *ContactHandler) DeleteContacts(c *gin.Context) {
	var req deleteContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	deleted, err := h.Store.DeleteMany(req.IDs, req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "No contacts were deleted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("%d contacts deleted successfully", deleted)})
}

func (h *ContactHandler) ImportContacts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("csv_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file selected"})
		return
	}

	ext := strings.ToLower(fileHeader.Filename)
	if !strings.HasSuffix(ext, ".csv") && !strings.HasSuffix(ext, ".txt") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please upload a valid CSV file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read file"})
		return
	}
	defer file.Close()

	stats, err := h.Store.ImportCSV(userID, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("Failed to import CSV: %v", err)})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"added":      stats.Added,
		"duplicates": stats.Duplicates,
		"errors":     stats.Errors,
	}).Info("Contacts imported")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Import completed. Added: %d, Duplicates: %d, Errors: %d",
			stats.Added, stats.Duplicates, stats.Errors),
		"stats": stats,
	})
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	contacts, err := h.Store.Export(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to export contacts"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")

	writer := csv.NewWriter(c.Writer)
	writer.Write([]string{"name", "phone", "status", "created_at"})
	for _, contact := range contacts {
		writer.Write([]string{
			contact.Name,
			contact.Phone,
			contact.Status,
			contact.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	writer.Flush()
}

func (h *ContactHandler) SampleCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=sample_contacts.csv")
	c.String(http.StatusOK, "name,phone\nJohn Doe,1234567890\nJane Smith,0987654321\n")
}
