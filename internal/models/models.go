package models

import "time"

type User struct {
	ID             int64      `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	PhoneNumber    string     `db:"phone_number" json:"phone_number"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Points         int64      `db:"points" json:"points"`
	ProfilePicture *string    `db:"profile_picture" json:"profile_picture,omitempty"`
	IsAdmin        bool       `db:"is_admin" json:"is_admin"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Mission struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Points      int64     `db:"points" json:"points"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	ActiveOn    time.Time `db:"active_on" json:"active_on"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MissionProgress is a user's tracking row for one mission.
type MissionProgress struct {
	ID        int64         `db:"id" json:"id"`
	UserID    int64         `db:"user_id" json:"user_id"`
	MissionID int64         `db:"mission_id" json:"mission_id"`
	Proof     string        `db:"proof" json:"proof"`
	Status    MissionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// MissionProgressDetail joins a progress row with its mission.
type MissionProgressDetail struct {
	MissionProgress
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	MissionPoints int64     `db:"mission_points" json:"points"`
	MissionImage  *string   `db:"mission_image_url" json:"image_url,omitempty"`
	MissionActive time.Time `db:"mission_active_on" json:"active_on"`
	Username      string    `db:"username" json:"username,omitempty"`
}

type Voucher struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	ImagePath string    `db:"image_path" json:"image_path"`
	Points    int64     `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VoucherExchange is an append-only record of a voucher redemption.
type VoucherExchange struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	VoucherID   int64     `db:"voucher_id" json:"voucher_id"`
	Token       string    `db:"token" json:"token"`
	PointsSpent int64     `db:"points_spent" json:"points_spent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Reward is an append-only record of points redeemed for e-wallet balance.
type Reward struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Balance     int64     `db:"balance" json:"balance"`
	PointsSpent int64     `db:"points_spent" json:"points_spent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Session struct {
	ID        string     `db:"id"`
	UserID    int64      `db:"user_id"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}
