package testhelpers

import (
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/repository/postgres"
)

// NewHubStoreForTest создаёт хранилище хабов поверх тестовой базы
func (tdb *TestDB) NewHubStoreForTest() repository.HubStore {
	return postgres.NewHubStore(postgres.NewDBForTest(tdb.DB, tdb.Logger))
}

// NewBorderRepositoryForTest создаёт репозиторий границ поверх тестовой базы
func (tdb *TestDB) NewBorderRepositoryForTest() repository.BorderRepository {
	return postgres.NewBorderRepository(postgres.NewDBForTest(tdb.DB, tdb.Logger))
}
