package seeders

import (
	"log"

	"academy_go/models"
	"academy_go/repository/memory"

	"gorm.io/gorm"
)

// Development fixtures shared by the SQL and in-memory seeders.
var (
	employees = []models.Employee{
		{BaseModel: models.BaseModel{ID: 1}, AuthID: "dev-admin", Name: "Park Jiyeon", Role: "admin"},
		{BaseModel: models.BaseModel{ID: 2}, AuthID: "dev-teacher", Name: "Lee Minho", Role: "teacher"},
	}

	students = []models.Student{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Kim Minji", GuardianName: "Kim Soyeon"},
		{BaseModel: models.BaseModel{ID: 2}, Name: "Choi Jisoo", GuardianName: "Choi Daeho"},
		{BaseModel: models.BaseModel{ID: 3}, Name: "Jung Hyun", GuardianName: "Jung Mira"},
		{BaseModel: models.BaseModel{ID: 4}, Name: "Han Dami", GuardianName: "Han Sungmin"},
	}

	classes = []models.Class{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Elementary Reading A"},
		{BaseModel: models.BaseModel{ID: 2}, Name: "Middle School Grammar"},
	}

	schedules = []models.ClassSchedule{
		{ClassID: 1, DayOfWeek: "월", StartTime: "16:00:00", EndTime: "17:30:00"},
		{ClassID: 1, DayOfWeek: "수", StartTime: "16:00:00", EndTime: "17:30:00"},
		{ClassID: 1, DayOfWeek: "금", StartTime: "16:00:00", EndTime: "17:30:00"},
		{ClassID: 2, DayOfWeek: "화", StartTime: "18:00:00", EndTime: "20:00:00"},
		{ClassID: 2, DayOfWeek: "목", StartTime: "18:00:00", EndTime: "20:00:00"},
	}
)

// SeedAll fills empty reference tables with development fixtures.
func SeedAll(db *gorm.DB) {
	log.Println("Starting database seeding...")

	seedTable(db, &models.Employee{}, employees)
	seedTable(db, &models.Student{}, students)
	seedTable(db, &models.Class{}, classes)
	seedTable(db, &models.ClassSchedule{}, schedules)

	log.Println("Database seeding completed successfully!")
}

func seedTable[T any](db *gorm.DB, model interface{}, rows []T) {
	var count int64
	db.Model(model).Count(&count)
	if count > 0 {
		log.Printf("%T already seeded, skipping...", model)
		return
	}
	if err := db.Create(&rows).Error; err != nil {
		log.Printf("Failed to seed %T: %v", model, err)
	}
}

// SeedMemory loads the same fixtures into an in-memory database.
func SeedMemory(db *memory.DB) {
	for _, e := range employees {
		db.AddEmployee(e.AuthID, e.ID)
	}
	for _, s := range students {
		db.AddStudent(s.ID, s.Name)
		if s.GuardianLineID != "" {
			db.SetGuardianLineID(s.ID, s.GuardianLineID)
		}
	}
	for _, c := range classes {
		db.AddClass(c.ID, c.Name)
	}
	for _, s := range schedules {
		db.AddSchedule(s.ClassID, s.DayOfWeek, s.StartTime, s.EndTime)
	}
}
