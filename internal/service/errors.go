package service

import "errors"

// Таксономия ошибок движка диспетчеризации. Все ошибки хранилища оборачиваются
// через fmt.Errorf("...: %w", err) и проверяются через errors.Is.
var (
	// ErrNotFound - тревога или команда больше не существует (transient, попытка прекращается)
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict - сохраненный статус команды уже не совпадает с ожидаемым:
	// другой процесс или оператор изменил его параллельно. Ожидаемое состояние
	// гонки, не ошибка системы; вызывающий повторяет матчинг по свежему снимку.
	ErrStatusConflict = errors.New("team status conflict")

	// ErrNoTeamAvailable - нет ни одной доступной команды; тревога остается pending
	ErrNoTeamAvailable = errors.New("no team available")

	// ErrAlreadyAssigned - тревога уже привязана к команде; повторный commit - no-op
	ErrAlreadyAssigned = errors.New("alert already assigned")

	// ErrStageOutOfOrder - не записан хотя бы один предшествующий этап
	ErrStageOutOfOrder = errors.New("response stage out of order")

	// ErrStageAlreadyRecorded - этот этап уже записан для данной тревоги
	ErrStageAlreadyRecorded = errors.New("response stage already recorded")
)
