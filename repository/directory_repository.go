package repository

import (
	"context"
	"errors"
	"fmt"

	"academy_go/middleware"
	"academy_go/models"

	"gorm.io/gorm"
)

// DirectoryRepository resolves student and class names for snapshots.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) StudentNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var students []models.Student
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	for _, s := range students {
		out[s.ID] = s.Name
	}
	return out, nil
}

func (r *DirectoryRepository) ClassName(ctx context.Context, id uint) (string, error) {
	var class models.Class
	err := r.db.WithContext(ctx).Select("id", "name").First(&class, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find class %d: %w", id, err)
	}
	return class.Name, nil
}

// GuardianLineID returns "" for unknown students and guardians without LINE.
func (r *DirectoryRepository) GuardianLineID(ctx context.Context, studentID uint) (string, error) {
	var student models.Student
	err := r.db.WithContext(ctx).Select("id", "guardian_line_id").First(&student, studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find student %d: %w", studentID, err)
	}
	return student.GuardianLineID, nil
}

// IdentityRepository maps the request's auth id to employees.id.
type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) ActingStaff(ctx context.Context) (*uint, error) {
	authID, ok := middleware.AuthIDFromContext(ctx)
	if !ok {
		return nil, nil
	}

	var emp models.Employee
	err := r.db.WithContext(ctx).Select("id").Where("auth_id = ?", authID).First(&emp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &emp.ID, nil
}
