package handlers

import (
	"time"

	"missionrewards/internal/models"
)

// UserDTO ensures a date-only birth_date and consistent timestamp strings.
type UserDTO struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	PhoneNumber    string  `json:"phone_number"`
	BirthDate      *string `json:"birth_date"`
	Points         int64   `json:"points"`
	ProfilePicture *string `json:"profile_picture"`
	IsAdmin        bool    `json:"is_admin"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// MissionProgressDTO is a progress row joined with its mission.
type MissionProgressDTO struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username,omitempty"`
	MissionID   int64   `json:"mission_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Points      int64   `json:"points"`
	ImageURL    *string `json:"image_url"`
	ActiveOn    string  `json:"active_on"`
	Status      string  `json:"status"`
	Proof       string  `json:"proof"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// UserMissionDTO is a bare progress row.
type UserMissionDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	MissionID int64  `json:"mission_id"`
	Status    string `json:"status"`
	Proof     string `json:"proof"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type VoucherDTO struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ImagePath string `json:"image_path"`
	Points    int64  `json:"points"`
	CreatedAt string `json:"created_at"`
}

type VoucherExchangeDTO struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	VoucherID   int64  `json:"voucher_id"`
	Token       string `json:"token"`
	PointsSpent int64  `json:"points_spent"`
	CreatedAt   string `json:"created_at"`
}

type RewardDTO struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Balance     int64  `json:"balance"`
	PointsSpent int64  `json:"points_spent"`
	CreatedAt   string `json:"created_at"`
}

func toDateStringPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func toDateTimeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func ToUserDTO(u models.User) UserDTO {
	return UserDTO{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PhoneNumber:    u.PhoneNumber,
		BirthDate:      toDateStringPtr(u.BirthDate),
		Points:         u.Points,
		ProfilePicture: u.ProfilePicture,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      toDateTimeString(u.CreatedAt),
		UpdatedAt:      toDateTimeString(u.UpdatedAt),
	}
}

func ToMissionProgressDTO(d models.MissionProgressDetail) MissionProgressDTO {
	return MissionProgressDTO{
		ID:          d.ID,
		UserID:      d.UserID,
		Username:    d.Username,
		MissionID:   d.MissionID,
		Title:       d.Title,
		Description: d.Description,
		Points:      d.MissionPoints,
		ImageURL:    d.MissionImage,
		ActiveOn:    d.MissionActive.Format("2006-01-02"),
		Status:      string(d.Status),
		Proof:       d.Proof,
		CreatedAt:   toDateTimeString(d.CreatedAt),
		UpdatedAt:   toDateTimeString(d.UpdatedAt),
	}
}

func toMissionProgressDTOs(in []models.MissionProgressDetail) []MissionProgressDTO {
	out := make([]MissionProgressDTO, 0, len(in))
	for _, d := range in {
		out = append(out, ToMissionProgressDTO(d))
	}
	return out
}

func ToUserMissionDTO(p models.MissionProgress) UserMissionDTO {
	return UserMissionDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		MissionID: p.MissionID,
		Status:    string(p.Status),
		Proof:     p.Proof,
		CreatedAt: toDateTimeString(p.CreatedAt),
		UpdatedAt: toDateTimeString(p.UpdatedAt),
	}
}

func ToVoucherDTO(v models.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:        v.ID,
		Title:     v.Title,
		ImagePath: v.ImagePath,
		Points:    v.Points,
		CreatedAt: toDateTimeString(v.CreatedAt),
	}
}

func ToVoucherExchangeDTO(e models.VoucherExchange) VoucherExchangeDTO {
	return VoucherExchangeDTO{
		ID:          e.ID,
		UserID:      e.UserID,
		VoucherID:   e.VoucherID,
		Token:       e.Token,
		PointsSpent: e.PointsSpent,
		CreatedAt:   toDateTimeString(e.CreatedAt),
	}
}

func ToRewardDTO(rw models.Reward) RewardDTO {
	return RewardDTO{
		ID:          rw.ID,
		UserID:      rw.UserID,
		Email:       rw.Email,
		Phone:       rw.Phone,
		Balance:     rw.Balance,
		PointsSpent: rw.PointsSpent,
		CreatedAt:   toDateTimeString(rw.CreatedAt),
	}
}
