package datastore

// FindTranscriptionUser looks up a transcription-created user by
// case-insensitive given/family name match. Returns gorm.ErrRecordNotFound
// when no such user exists.
func (ds *DataStore) FindTranscriptionUser(firstName, lastName string) (*User, error) {
	var user User
	err := ds.DB.
		Where("LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?) AND from_transcription = ?",
			firstName, lastName, true).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameExists reports whether a login handle is already taken.
func (ds *DataStore) UsernameExists(username string) (bool, error) {
	var count int64
	err := ds.DB.Model(&User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// CreateUser inserts a new user row.
func (ds *DataStore) CreateUser(user *User) error {
	return ds.DB.Create(user).Error
}
