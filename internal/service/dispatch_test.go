package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/config"
	"github.com/korzhev/alert_dispatch_system/internal/geo"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/service/mocks"
	webhook_mocks "github.com/korzhev/alert_dispatch_system/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestDispatchService — вспомогательная функция для создания инстанса сервиса с моками.
func newTestDispatchService(t *testing.T) (*dispatchService, *mocks.MockAlertRepository, *mocks.MockTeamRepository, *mocks.MockAlertFeedPublisher, *webhook_mocks.MockWebhookPublisher) {
	ctrl := gomock.NewController(t)
	alertsMock := mocks.NewMockAlertRepository(ctrl)
	teamsMock := mocks.NewMockTeamRepository(ctrl)
	feedMock := mocks.NewMockAlertFeedPublisher(ctrl)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		DispatchMaxRetries:     3,
		DispatchRetryBaseDelay: time.Millisecond,
		TeamReleaseGracePeriod: 10 * time.Minute,
	}

	service := NewDispatchService(alertsMock, teamsMock, logger, cfg, feedMock, webhookMock)
	return service.(*dispatchService), alertsMock, teamsMock, feedMock, webhookMock
}

func makeTeam(name string, lat, lon, radius float64, status string) *models.ResponseTeam {
	return &models.ResponseTeam{
		ID:             uuid.New(),
		TeamName:       name,
		TeamType:       models.TeamTypeRescue,
		Latitude:       lat,
		Longitude:      lon,
		ResponseRadius: radius,
		CurrentStatus:  status,
	}
}

func makePendingAlert(lat, lon float64) *models.Alert {
	return &models.Alert{
		ID:           uuid.New(),
		ReporterName: "Тестовый заявитель",
		PhoneNumber:  "+70000000000",
		Latitude:     lat,
		Longitude:    lon,
		Status:       models.AlertStatusPending,
	}
}

func TestMatchNearestTeam_PrefersInRadiusTeam(t *testing.T) {
	// Подготовка: Т1 в ~111 м (радиус 2000 м), Т2 в ~5560 м (радиус 500 м)
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)
	t2 := makeTeam("Т2", 13.0500, 80.2000, 500, models.TeamStatusAvailable)

	// Действие
	matched := MatchNearestTeam(alert, []*models.ResponseTeam{t2, t1})

	// Проверки
	require.NotNil(t, matched)
	assert.Equal(t, t1.ID, matched.ID)
}

func TestMatchNearestTeam_FallbackBeyondRadius(t *testing.T) {
	// Подготовка: Т1 занята, единственная доступная Т2 вне своего радиуса
	// (5560 м > 500 м) - политика "деградация с обслуживанием" выбирает ее
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusBusy)
	t2 := makeTeam("Т2", 13.0500, 80.2000, 500, models.TeamStatusAvailable)

	// Действие
	matched := MatchNearestTeam(alert, []*models.ResponseTeam{t1, t2})

	// Проверки
	require.NotNil(t, matched)
	assert.Equal(t, t2.ID, matched.ID)
}

func TestMatchNearestTeam_NoAvailableTeams(t *testing.T) {
	// Подготовка: доступных команд нет вовсе
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusBusy)
	t2 := makeTeam("Т2", 13.0500, 80.2000, 500, models.TeamStatusOffline)

	// Действие
	matched := MatchNearestTeam(alert, []*models.ResponseTeam{t1, t2})

	// Проверки
	assert.Nil(t, matched)
}

func TestMatchNearestTeam_ExactRadiusBoundaryIsInRadius(t *testing.T) {
	// Подготовка: радиус Т1 равен расстоянию до тревоги в точности - граница
	// включается, поэтому Т1 выбирается как покрывающая, а не как fallback
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 0, models.TeamStatusAvailable)
	t1.ResponseRadius = geo.Distance(alert.Latitude, alert.Longitude, t1.Latitude, t1.Longitude)
	// Т2 тоже покрывает тревогу, но она дальше: если бы граница исключалась,
	// выбор упал бы на Т2
	t2 := makeTeam("Т2", 13.0500, 80.2000, 100000, models.TeamStatusAvailable)

	// Действие
	matched := MatchNearestTeam(alert, []*models.ResponseTeam{t2, t1})

	// Проверки
	require.NotNil(t, matched)
	assert.Equal(t, t1.ID, matched.ID)
}

func TestMatchNearestTeam_TieBrokenByLowestID(t *testing.T) {
	// Подготовка: две команды на одинаковом расстоянии - детерминированно
	// выбирается меньший id
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)
	t2 := makeTeam("Т2", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)
	t1.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	t2.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	// Действие: порядок входа не должен влиять на результат
	matchedA := MatchNearestTeam(alert, []*models.ResponseTeam{t2, t1})
	matchedB := MatchNearestTeam(alert, []*models.ResponseTeam{t1, t2})

	// Проверки
	require.NotNil(t, matchedA)
	require.NotNil(t, matchedB)
	assert.Equal(t, t1.ID, matchedA.ID)
	assert.Equal(t, t1.ID, matchedB.ID)
}

func TestDispatchAlert_Success(t *testing.T) {
	// Подготовка
	service, alertsMock, teamsMock, _, webhookMock := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	team := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)

	// Ожидания
	// 1. Авторитетное перечитывание тревоги перед commit
	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(1)

	// 2. Свежий снимок реестра
	teamsMock.EXPECT().ListTeams(ctx).Return([]*models.ResponseTeam{team}, nil).Times(1)

	// 3. Условный перевод команды available -> busy
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, team.ID, models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(nil).Times(1)

	// 4. Привязка тревоги и инвалидация кеша
	alertsMock.EXPECT().BindTeam(ctx, alert.ID, team, gomock.Any()).Return(nil).Times(1)
	alertsMock.EXPECT().InvalidateAlertCache(ctx, alert.ID).Return(nil).Times(1)

	// 5. Вебхук о назначении
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, team.ID, assigned.ID)
}

func TestDispatchAlert_AlreadyAssigned(t *testing.T) {
	// Подготовка: тревога уже привязана - повторный вызов ничего не меняет
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	teamID := uuid.New()
	alert.AssignedTeamID = &teamID

	// Ожидания: после перечитывания никакие записи не выполняются
	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(1)
	teamsMock.EXPECT().ListTeams(gomock.Any()).Times(0)
	teamsMock.EXPECT().UpdateTeamStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, assigned)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestDispatchAlert_NoTeamAvailable(t *testing.T) {
	// Подготовка: все команды заняты - тревога остается pending
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	busy := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusBusy)

	// Ожидания
	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(1)
	teamsMock.EXPECT().ListTeams(ctx).Return([]*models.ResponseTeam{busy}, nil).Times(1)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, assigned)
	assert.ErrorIs(t, err, ErrNoTeamAvailable)
}

func TestDispatchAlert_ConflictRematchesWithoutLostTeam(t *testing.T) {
	// Подготовка: Т1 ближе, но условная запись по ней проигрывает гонку.
	// Повторный матчинг по свежему снимку должен исключить Т1 и выбрать Т2.
	service, alertsMock, teamsMock, _, webhookMock := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	t1 := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)
	t2 := makeTeam("Т2", 13.0100, 80.2000, 5000, models.TeamStatusAvailable)
	snapshot := []*models.ResponseTeam{t1, t2}

	// Ожидания: две итерации цикла
	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(2)
	teamsMock.EXPECT().ListTeams(ctx).Return(snapshot, nil).Times(2)

	// Первая попытка: Т1 успели занять
	conflictErr := fmt.Errorf("team %s status is not %q: %w", t1.ID, models.TeamStatusAvailable, ErrStatusConflict)
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, t1.ID, models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(conflictErr).Times(1)

	// Вторая попытка: Т2 берется успешно
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, t2.ID, models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(nil).Times(1)
	alertsMock.EXPECT().BindTeam(ctx, alert.ID, t2, gomock.Any()).Return(nil).Times(1)
	alertsMock.EXPECT().InvalidateAlertCache(ctx, alert.ID).Return(nil).Times(1)
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, t2.ID, assigned.ID)
}

func TestDispatchAlert_RetriesExhausted(t *testing.T) {
	// Подготовка: каждый снимок приносит новую команду, и каждая проигрывает
	// гонку - после исчерпания повторов тревога остается pending для sweep
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	service.cfg.DispatchMaxRetries = 1
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)

	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(2)
	teamsMock.EXPECT().ListTeams(ctx).DoAndReturn(func(ctx context.Context) ([]*models.ResponseTeam, error) {
		return []*models.ResponseTeam{makeTeam("Т", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)}, nil
	}).Times(2)
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, gomock.Any(), models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(fmt.Errorf("lost: %w", ErrStatusConflict)).Times(2)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, assigned)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestDispatchAlert_AlertNoLongerPending(t *testing.T) {
	// Подготовка: тревога уже resolved без назначения - диспетчеризация не нужна
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	alert.Status = models.AlertStatusResolved

	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(1)
	teamsMock.EXPECT().ListTeams(gomock.Any()).Times(0)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.NoError(t, err)
	assert.Nil(t, assigned)
}

func TestDispatchAlert_BindFailureIsNotRolledBack(t *testing.T) {
	// Подготовка: команда переведена в busy, но привязка тревоги упала.
	// Статус команды не откатывается - это чинит reconciliation sweep.
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := makePendingAlert(13.0000, 80.2000)
	team := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)

	alertsMock.EXPECT().GetByID(ctx, alert.ID).Return(alert, nil).Times(1)
	teamsMock.EXPECT().ListTeams(ctx).Return([]*models.ResponseTeam{team}, nil).Times(1)
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, team.ID, models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(nil).Times(1)
	alertsMock.EXPECT().BindTeam(ctx, alert.ID, team, gomock.Any()).Return(fmt.Errorf("store unreachable")).Times(1)
	// Обратного UpdateTeamStatus в available быть не должно
	teamsMock.EXPECT().
		UpdateTeamStatus(gomock.Any(), gomock.Any(), models.TeamStatusAvailable, gomock.Any(), gomock.Any()).
		Times(0)

	// Действие
	assigned, err := service.DispatchAlert(ctx, alert.ID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, assigned)
}

func TestCreateAlert_Success(t *testing.T) {
	// Подготовка
	service, alertsMock, _, feedMock, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := &models.Alert{
		ReporterName: "Новый заявитель",
		PhoneNumber:  "+71112223344",
		Latitude:     13.0,
		Longitude:    80.2,
	}

	// Ожидания
	alertsMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, a *models.Alert) error {
			// Симулируем, что БД присвоила ID
			a.ID = uuid.New()
			a.CreatedAt = time.Now()
			return nil
		}).Times(1)
	feedMock.EXPECT().PublishAlertCreated(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	err := service.CreateAlert(ctx, alert)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.NotEqual(t, uuid.Nil, alert.ID)
}

func TestCreateAlert_FeedPublishFailureIsNotFatal(t *testing.T) {
	// Подготовка: сбой публикации в ленту не теряет тревогу - она pending
	// и видима, ее подберет sweep
	service, alertsMock, _, feedMock, _ := newTestDispatchService(t)
	ctx := context.Background()
	alert := &models.Alert{ReporterName: "Заявитель", PhoneNumber: "+7000", Latitude: 1, Longitude: 1}

	alertsMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	feedMock.EXPECT().PublishAlertCreated(ctx, gomock.Any()).Return(fmt.Errorf("redis down")).Times(1)

	// Действие
	err := service.CreateAlert(ctx, alert)

	// Проверки
	require.NoError(t, err)
}

func TestGetAlert_Success_FromCache(t *testing.T) {
	// Подготовка
	service, alertsMock, _, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alertID := uuid.New()
	expected := &models.Alert{ID: alertID, ReporterName: "Из кеша"}

	// Ожидания
	alertsMock.EXPECT().GetAlertFromCache(ctx, alertID).Return(expected, nil).Times(1)

	// Действие
	alert, err := service.GetAlert(ctx, alertID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, alert)
}

func TestGetAlert_Success_FromDB(t *testing.T) {
	// Подготовка
	service, alertsMock, _, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alertID := uuid.New()
	expected := &models.Alert{ID: alertID, ReporterName: "Из БД"}

	// Ожидания: промах кеша, чтение из БД, запись в кеш
	alertsMock.EXPECT().GetAlertFromCache(ctx, alertID).Return(nil, nil).Times(1)
	alertsMock.EXPECT().GetByID(ctx, alertID).Return(expected, nil).Times(1)
	alertsMock.EXPECT().SetAlertCache(ctx, expected).Return(nil).Times(1)

	// Действие
	alert, err := service.GetAlert(ctx, alertID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, alert)
}

func TestGetAlert_NotFound(t *testing.T) {
	// Подготовка
	service, alertsMock, _, _, _ := newTestDispatchService(t)
	ctx := context.Background()
	alertID := uuid.New()

	alertsMock.EXPECT().GetAlertFromCache(ctx, alertID).Return(nil, nil).Times(1)
	alertsMock.EXPECT().GetByID(ctx, alertID).Return(nil, fmt.Errorf("alert: %w", ErrNotFound)).Times(1)

	// Действие
	alert, err := service.GetAlert(ctx, alertID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDrainBacklog_StopsWhenNoTeamLeft(t *testing.T) {
	// Подготовка: две тревоги в backlog, команда одна - вторая тревога
	// останавливает обход по ErrNoTeamAvailable
	service, alertsMock, teamsMock, _, webhookMock := newTestDispatchService(t)
	ctx := context.Background()
	a1 := makePendingAlert(13.0000, 80.2000)
	a2 := makePendingAlert(13.0100, 80.2000)
	team := makeTeam("Т1", 13.0010, 80.2000, 2000, models.TeamStatusAvailable)

	// Ожидания
	alertsMock.EXPECT().ListPendingUnassigned(ctx).Return([]*models.Alert{a1, a2}, nil).Times(1)

	// Первая тревога назначается
	alertsMock.EXPECT().GetByID(ctx, a1.ID).Return(a1, nil).Times(1)
	teamsMock.EXPECT().ListTeams(ctx).Return([]*models.ResponseTeam{team}, nil).Times(1)
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, team.ID, models.TeamStatusBusy, gomock.Not(gomock.Nil()), gomock.Any()).
		Return(nil).Times(1)
	alertsMock.EXPECT().BindTeam(ctx, a1.ID, team, gomock.Any()).Return(nil).Times(1)
	alertsMock.EXPECT().InvalidateAlertCache(ctx, a1.ID).Return(nil).Times(1)
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Вторая тревога: свежий снимок уже без доступных команд
	busyTeam := &models.ResponseTeam{ID: team.ID, TeamName: team.TeamName, CurrentStatus: models.TeamStatusBusy}
	alertsMock.EXPECT().GetByID(ctx, a2.ID).Return(a2, nil).Times(1)
	teamsMock.EXPECT().ListTeams(ctx).Return([]*models.ResponseTeam{busyTeam}, nil).Times(1)

	// Действие
	assigned, err := service.DrainBacklog(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, 1, assigned)
}

func TestReleaseStuckTeams_Success(t *testing.T) {
	// Подготовка: команда зависла в busy без привязанной тревоги
	service, _, teamsMock, _, webhookMock := newTestDispatchService(t)
	ctx := context.Background()
	stuck := makeTeam("Зависшая", 13.0, 80.2, 2000, models.TeamStatusBusy)

	// Ожидания: освобождение безусловное (expectedPrior == nil)
	teamsMock.EXPECT().ListStuckBusy(ctx, service.cfg.TeamReleaseGracePeriod).Return([]*models.ResponseTeam{stuck}, nil).Times(1)
	teamsMock.EXPECT().
		UpdateTeamStatus(ctx, stuck.ID, models.TeamStatusAvailable, gomock.Nil(), gomock.Any()).
		Return(nil).Times(1)
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	released, err := service.ReleaseStuckTeams(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, 1, released)
}

func TestSweep_EmptyState(t *testing.T) {
	// Подготовка: чинить нечего
	service, alertsMock, teamsMock, _, _ := newTestDispatchService(t)
	ctx := context.Background()

	teamsMock.EXPECT().ListStuckBusy(ctx, gomock.Any()).Return(nil, nil).Times(1)
	alertsMock.EXPECT().ListPendingUnassigned(ctx).Return(nil, nil).Times(1)

	// Действие
	result, err := service.Sweep(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.SweepResult{}, result)
}
