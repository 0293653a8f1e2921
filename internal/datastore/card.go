package datastore

// CreateCard inserts a card and its associated sub-records in one go. GORM
// persists the preset associations with the card's number.
func (ds *DataStore) CreateCard(card *Card) error {
	return ds.DB.Create(card).Error
}

// DeleteCard removes a card. Dependent location, nest, visits, summary,
// failure cause, and remarks cascade at the database level; the explicit
// deletes below also cover sqlite files migrated without FK enforcement.
func (ds *DataStore) DeleteCard(number uint) error {
	for _, model := range []any{
		&Visit{}, &Remark{}, &Location{}, &Nest{}, &Summary{}, &FailureCause{},
	} {
		if err := ds.DB.Where("card_number = ?", number).Delete(model).Error; err != nil {
			return err
		}
	}
	return ds.DB.Delete(&Card{}, number).Error
}

// GetCard fetches a card with its full bundle preloaded.
func (ds *DataStore) GetCard(number uint) (*Card, error) {
	var card Card
	err := ds.DB.
		Preload("Observer").
		Preload("Species").
		Preload("Location").
		Preload("Nest").
		Preload("Visits").
		Preload("Summary").
		Preload("FailureCause").
		Preload("Remarks").
		First(&card, number).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}
