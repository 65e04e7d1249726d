// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema holds the table and column names of the identity database.
//
// Repositories build their SQL from these values so a renamed column is a
// one-line change here instead of a search through every query.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table                 string
	ID                    string
	Email                 string
	EmailKey              string
	Password              string
	FirstName             string
	LastName              string
	Roles                 string
	IsActive              string
	IsVerified            string
	VerificationTokenHash string
	VerificationExpiresAt string
	ResetTokenHash        string
	ResetExpiresAt        string
	AuthProvider          string
	ProviderID            string
	LastLoginAt           string
	CreatedAt             string
	UpdatedAt             string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:                 "users.account",
	ID:                    "id",
	Email:                 "email",
	EmailKey:              "emailkey",
	Password:              "passwordhash",
	FirstName:             "firstname",
	LastName:              "lastname",
	Roles:                 "roles",
	IsActive:              "isactive",
	IsVerified:            "isverified",
	VerificationTokenHash: "verificationtokenhash",
	VerificationExpiresAt: "verificationexpiresat",
	ResetTokenHash:        "resettokenhash",
	ResetExpiresAt:        "resetexpiresat",
	AuthProvider:          "authprovider",
	ProviderID:            "providerid",
	LastLoginAt:           "lastloginat",
	CreatedAt:             "createdat",
	UpdatedAt:             "updatedat",
}

// Columns returns the columns hydrated into an account entity. EmailKey is
// derived from Email on write and never read back.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.Password, t.FirstName, t.LastName, t.Roles,
		t.IsActive, t.IsVerified, t.VerificationTokenHash, t.VerificationExpiresAt,
		t.ResetTokenHash, t.ResetExpiresAt, t.AuthProvider, t.ProviderID,
		t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}
