package models

import (
	"time"

	"github.com/lib/pq"
)

// User is created on first sign-in and never hard-deleted.
type User struct {
	ID        string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GoogleSub *string `gorm:"column:google_sub;type:text;uniqueIndex" json:"-"`
	Email     string  `gorm:"column:email;type:text;uniqueIndex;not null" json:"email"`
	Name      string  `gorm:"column:name;type:text" json:"name"`
	Image     string  `gorm:"column:image;type:text" json:"image"`

	// onboarding profile
	University      string         `gorm:"column:university;type:text" json:"university"`
	Major           string         `gorm:"column:major;type:text" json:"major"`
	GraduationYear  *int           `gorm:"column:graduation_year" json:"graduationYear"`
	Location        string         `gorm:"column:location;type:text" json:"location"`
	Skills          pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`
	LinkedInProfile string         `gorm:"column:linkedin_profile;type:text" json:"linkedInProfile"`
	EducationLevel  string         `gorm:"column:education_level;type:text" json:"educationLevel"`
	CareerGoals     string         `gorm:"column:career_goals;type:text" json:"careerGoals"`

	// resume
	HasResume      bool   `gorm:"column:has_resume;not null;default:false" json:"hasResume"`
	ResumeText     string `gorm:"column:resume_text;type:text" json:"resumeText"`
	ResumeFileName string `gorm:"column:resume_file_name;type:text" json:"resumeFileName"`
	ResumeFileType string `gorm:"column:resume_file_type;type:text" json:"resumeFileType"`
	ResumeFilePath string `gorm:"column:resume_file_path;type:text" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// ResumeContext returns the stored resume text when the user has one.
func (u *User) ResumeContext() string {
	if u == nil || !u.HasResume {
		return ""
	}
	return u.ResumeText
}
