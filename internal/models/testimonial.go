package models

import "time"

// Testimonial is user feedback shown publicly once an admin approves it.
type Testimonial struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	Rating    int       `db:"rating" json:"rating"`
	Approved  bool      `db:"approved" json:"approved"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TestimonialDetail enriches a testimonial with its author name.
type TestimonialDetail struct {
	Testimonial
	UserName string `db:"user_name" json:"user_name"`
}
