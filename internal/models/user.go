package models

import (
	"time"
)

type User struct {
	Phone     string    `json:"phone" dynamodbav:"phone"`
	Name      string    `json:"name,omitempty" dynamodbav:"name,omitempty"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return "USER#" + u.Phone
}

func (u *User) GetSK() string {
	return "METADATA"
}
