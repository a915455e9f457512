package repository

import (
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KVMetadataRepository struct {
	db *gorm.DB
}

func NewKVMetadataRepository(db *gorm.DB) *KVMetadataRepository {
	return &KVMetadataRepository{db: db}
}

// Upsert creates or replaces the side metadata record for a key. A record
// is written for every imported/restored key, with or without tags, so
// newly imported keys stay discoverable by search tooling.
func (r *KVMetadataRepository) Upsert(collectionID, keyName string, tags, customMetadata datatypes.JSON) error {
	record := entity.KVMetadata{
		CollectionID:   collectionID,
		KeyName:        keyName,
		Tags:           tags,
		CustomMetadata: customMetadata,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_id"}, {Name: "key_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"tags", "custom_metadata", "updated_at"}),
	}).Create(&record).Error
}

func (r *KVMetadataRepository) FindByKey(collectionID, keyName string) (*entity.KVMetadata, error) {
	var record entity.KVMetadata
	err := r.db.Where("collection_id = ? AND key_name = ?", collectionID, keyName).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *KVMetadataRepository) FindByKeys(collectionID string, keyNames []string) ([]entity.KVMetadata, error) {
	var records []entity.KVMetadata
	err := r.db.Where("collection_id = ? AND key_name IN ?", collectionID, keyNames).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *KVMetadataRepository) DeleteByKeys(collectionID string, keyNames []string) error {
	if len(keyNames) == 0 {
		return nil
	}
	return r.db.Delete(&entity.KVMetadata{}, "collection_id = ? AND key_name IN ?", collectionID, keyNames).Error
}
