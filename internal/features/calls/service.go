// Package calls: service.go: переходы состояний, таймер вызова, журнал и запись.
package calls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/realtime"
	"serotonyl.ru/green-earth/internal/storage"
)

// Notifier отправляет уведомление пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) error
}

// Publisher рассылает события подписчикам темы.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// Members проверяет участие в беседе для групповых звонков.
type Members interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

const recordingUploadTimeout = 2 * time.Minute

// Options: настройки звонков.
type Options struct {
	RingTimeout       time.Duration
	RecordingMaxBytes int64
	RecordingsEnabled bool
}

// Service управляет звонками.
type Service struct {
	repo     *Repository
	pub      Publisher
	notifier Notifier
	members  Members
	uploader storage.Uploader
	opts     Options

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	recordings *recorders
	now        func() time.Time
}

// NewService создаёт новый сервис звонков.
func NewService(repo *Repository, pub Publisher, notifier Notifier, members Members, uploader storage.Uploader, opts Options) *Service {
	return &Service{
		repo:       repo,
		pub:        pub,
		notifier:   notifier,
		members:    members,
		uploader:   uploader,
		opts:       opts,
		timers:     make(map[uuid.UUID]*time.Timer),
		recordings: newRecorders(),
		now:        time.Now,
	}
}

// Start начинает звонок и включает таймер вызова.
func (s *Service) Start(ctx context.Context, callerID, calleeID uuid.UUID, media Media) (*Call, error) {
	if callerID == calleeID {
		return nil, common.ErrSelfCall
	}
	if media == "" {
		media = MediaAudio
	}
	if !media.Valid() {
		return nil, common.ErrInvalidMedia
	}

	c, err := s.repo.Create(ctx, callerID, calleeID, media)
	if err != nil {
		return nil, err
	}
	s.armRingTimer(c.ID)

	log.WithFields(log.Fields{
		"call_id":   c.ID,
		"caller_id": callerID,
		"callee_id": calleeID,
		"media":     media,
	}).Info("Входящий звонок")

	s.publish(c)
	s.notify(ctx, calleeID, "call", "Входящий звонок", "Вам звонят", map[string]any{
		"call_id":   c.ID,
		"caller_id": callerID,
		"media":     media,
	})
	return c, nil
}

// Accept: собеседник принял звонок.
func (s *Service) Accept(ctx context.Context, userID, callID uuid.UUID) (*Call, error) {
	return s.move(ctx, userID, callID, StatusAccepted, true)
}

// Reject: собеседник отклонил звонок.
func (s *Service) Reject(ctx context.Context, userID, callID uuid.UUID) (*Call, error) {
	return s.move(ctx, userID, callID, StatusRejected, true)
}

// Connect: медиа-соединение установлено.
func (s *Service) Connect(ctx context.Context, userID, callID uuid.UUID) (*Call, error) {
	return s.move(ctx, userID, callID, StatusConnected, false)
}

// End завершает звонок. Если звонок ещё звонит, звонящий его отменил:
// для собеседника это пропущенный звонок.
func (s *Service) End(ctx context.Context, userID, callID uuid.UUID) (*Call, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(userID) {
		return nil, common.ErrNotParticipant
	}
	if c.Status == StatusRinging && c.CallerID == userID {
		return s.transition(ctx, c, StatusMissed)
	}
	return s.transition(ctx, c, StatusEnded)
}

func (s *Service) move(ctx context.Context, userID, callID uuid.UUID, to Status, calleeOnly bool) (*Call, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(userID) || (calleeOnly && c.CalleeID != userID) {
		return nil, common.ErrNotParticipant
	}
	return s.transition(ctx, c, to)
}

// transition проверяет переход по таблице и применяет его условным UPDATE.
func (s *Service) transition(ctx context.Context, c *Call, to Status) (*Call, error) {
	if !CanTransition(c.Status, to) {
		return nil, common.ErrInvalidCallTransition
	}
	updated, err := s.repo.Transition(ctx, c.ID, c.Status, to)
	if errors.Is(err, errStaleStatus) {
		return nil, common.ErrInvalidCallTransition
	}
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, c.Status, updated)
	return updated, nil
}

func (s *Service) afterTransition(ctx context.Context, from Status, c *Call) {
	if from == StatusRinging {
		s.disarmRingTimer(c.ID)
	}

	fields := log.Fields{"call_id": c.ID, "from": from, "to": c.Status}
	if c.Status.IsTerminal() {
		saved, discarded := s.finishRecordings(ctx, s.recordings.takeAll(c.ID))
		if saved > 0 {
			fields["recordings_saved"] = saved
		}
		if discarded > 0 {
			fields["recordings_discarded"] = discarded
		}
		fields["duration_seconds"] = c.DurationSeconds
	}
	log.WithFields(fields).Info("Состояние звонка изменено")

	s.publish(c)

	switch c.Status {
	case StatusMissed:
		s.notify(ctx, c.CalleeID, "missed_call", "Пропущенный звонок", "Нажмите, чтобы перезвонить", map[string]any{
			"call_id":       c.ID,
			"caller_id":     c.CallerID,
			"media":         c.Media,
			"can_call_back": true,
		})
	case StatusRejected:
		s.notify(ctx, c.CallerID, "call_rejected", "Звонок отклонён", "Собеседник не может ответить", map[string]any{
			"call_id": c.ID,
		})
	}
}

// publish рассылает статус обоим участникам и подписчикам темы call:<id>.
func (s *Service) publish(c *Call) {
	ev := StatusEvent{CallID: c.ID, Status: c.Status, CallerID: c.CallerID, CalleeID: c.CalleeID, Media: c.Media}
	s.pub.Publish(realtime.UserTopic(c.CallerID), realtime.EventCallStatus, ev)
	s.pub.Publish(realtime.UserTopic(c.CalleeID), realtime.EventCallStatus, ev)
	s.pub.Publish(realtime.CallTopic(c.ID), realtime.EventCallStatus, ev)
}

func (s *Service) publishGroup(g *GroupCall) {
	s.pub.Publish(realtime.ConversationTopic(g.ConversationID), realtime.EventCallStatus, g)
	s.pub.Publish(realtime.CallTopic(g.ID), realtime.EventCallStatus, g)
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, body, data); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось отправить уведомление о звонке")
	}
}

// --- Таймер вызова ---

func (s *Service) armRingTimer(callID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[callID] = time.AfterFunc(s.opts.RingTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.mu.Lock()
		delete(s.timers, callID)
		s.mu.Unlock()
		if err := s.expire(ctx, callID); err != nil {
			log.WithError(err).WithField("call_id", callID).Error("Ошибка завершения неотвеченного звонка")
		}
	})
}

func (s *Service) disarmRingTimer(callID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[callID]; ok {
		t.Stop()
		delete(s.timers, callID)
	}
}

// expire переводит звонок в missed, только если он всё ещё звонит.
func (s *Service) expire(ctx context.Context, callID uuid.UUID) error {
	updated, err := s.repo.Transition(ctx, callID, StatusRinging, StatusMissed)
	if errors.Is(err, errStaleStatus) {
		return nil
	}
	if err != nil {
		return err
	}
	s.afterTransition(ctx, StatusRinging, updated)
	return nil
}

// ExpireStale переводит в missed звонки, которые звонят дольше olderThan.
// Нужен после рестарта, когда таймеры в памяти потеряны.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.repo.StaleRinging(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		updated, err := s.repo.Transition(ctx, id, StatusRinging, StatusMissed)
		if errors.Is(err, errStaleStatus) {
			continue
		}
		if err != nil {
			return expired, err
		}
		s.afterTransition(ctx, StatusRinging, updated)
		expired++
	}
	return expired, nil
}

// Shutdown останавливает таймеры и сохраняет незавершённые записи.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	saved, discarded := s.finishRecordings(context.Background(), s.recordings.drain())
	if saved+discarded > 0 {
		log.WithFields(log.Fields{
			"recordings_saved":     saved,
			"recordings_discarded": discarded,
		}).Info("Записи звонков закрыты при остановке")
	}
}

// CallLog: журнал звонков пользователя.
func (s *Service) CallLog(ctx context.Context, userID uuid.UUID, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListLog(ctx, userID, limit)
}

// --- Групповые звонки ---

func (s *Service) requireMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotParticipant
	}
	return nil
}

// StartGroup начинает звонок в беседе.
func (s *Service) StartGroup(ctx context.Context, userID, conversationID uuid.UUID, media Media) (*GroupCall, error) {
	if media == "" {
		media = MediaAudio
	}
	if !media.Valid() {
		return nil, common.ErrInvalidMedia
	}
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	g, err := s.repo.CreateGroupCall(ctx, conversationID, userID, media)
	if err != nil {
		return nil, err
	}
	s.publishGroup(g)
	return g, nil
}

// EndGroup завершает групповой звонок. Повторное завершение не ошибка.
func (s *Service) EndGroup(ctx context.Context, userID, groupCallID uuid.UUID) (*GroupCall, error) {
	g, err := s.repo.GetGroupCall(ctx, groupCallID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, g.ConversationID, userID); err != nil {
		return nil, err
	}
	ended, err := s.repo.EndGroupCall(ctx, groupCallID)
	if err != nil {
		return nil, err
	}
	if !ended {
		return g, nil
	}
	s.finishRecordings(ctx, s.recordings.takeAll(groupCallID))
	g, err = s.repo.GetGroupCall(ctx, groupCallID)
	if err != nil {
		return nil, err
	}
	s.publishGroup(g)
	return g, nil
}

// CanWatch: можно ли подписаться на тему call:<id>.
func (s *Service) CanWatch(ctx context.Context, userID, id uuid.UUID) error {
	c, err := s.repo.Get(ctx, id)
	if err == nil {
		if !c.IsParticipant(userID) {
			return common.ErrNotParticipant
		}
		return nil
	}
	if !errors.Is(err, common.ErrCallNotFound) {
		return err
	}
	g, err := s.repo.GetGroupCall(ctx, id)
	if err != nil {
		return err
	}
	return s.requireMember(ctx, g.ConversationID, userID)
}

// --- Запись ---

// live проверяет, что пользователь участвует в идущем звонке.
func (s *Service) live(ctx context.Context, target Target, userID uuid.UUID) error {
	if !target.Valid() {
		return common.ErrCallNotFound
	}
	if target.CallID != nil {
		c, err := s.repo.Get(ctx, *target.CallID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return common.ErrNotParticipant
		}
		if c.Status != StatusAccepted && c.Status != StatusConnected {
			return common.ErrInvalidCallTransition
		}
		return nil
	}
	g, err := s.repo.GetGroupCall(ctx, *target.GroupCallID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, g.ConversationID, userID); err != nil {
		return err
	}
	if g.EndedAt != nil {
		return common.ErrInvalidCallTransition
	}
	return nil
}

// StartRecording открывает сессию записи. Повторный старт возвращает ту же сессию.
// Любая проблема с записью: ErrRecordingUnavailable, звонок при этом не трогаем.
func (s *Service) StartRecording(ctx context.Context, target Target, userID uuid.UUID) (*Recording, error) {
	if err := s.live(ctx, target, userID); err != nil {
		return nil, err
	}
	if !s.opts.RecordingsEnabled {
		return nil, fmt.Errorf("%w: запись выключена", common.ErrRecordingUnavailable)
	}
	if _, disabled := s.uploader.(storage.Disabled); disabled {
		return nil, fmt.Errorf("%w: %v", common.ErrRecordingUnavailable, common.ErrStorageDisabled)
	}
	r := s.recordings.open(target, userID, func() *Recording {
		return newRecording(target, userID, s.opts.RecordingMaxBytes, s.now)
	})
	log.WithFields(log.Fields{"target": target.ID(), "user_id": userID}).Info("Запись звонка начата")
	return r, nil
}

// AppendChunk добавляет кусок к активной записи пользователя.
func (s *Service) AppendChunk(target Target, userID uuid.UUID, p []byte) (int64, error) {
	r, ok := s.recordings.get(target, userID)
	if !ok {
		return 0, common.ErrRecordingNotActive
	}
	if err := r.AppendChunk(p); err != nil {
		return r.Size(), err
	}
	return r.Size(), nil
}

// StopRecording завершает запись и загружает её. Сессия закрывается на любом исходе.
func (s *Service) StopRecording(ctx context.Context, target Target, userID uuid.UUID) (*CallRecording, error) {
	r, ok := s.recordings.take(target, userID)
	if !ok {
		return nil, common.ErrRecordingNotActive
	}
	defer r.Close()

	blob, err := r.Stop()
	if err != nil {
		return nil, err
	}
	return s.UploadRecording(ctx, target, userID, blob)
}

// finishRecordings сохраняет записи, которые шли до конца звонка.
// Пустые выбрасываются. Ошибка загрузки только логируется.
func (s *Service) finishRecordings(ctx context.Context, list []*Recording) (saved, discarded int) {
	for _, r := range list {
		if s.finishRecording(ctx, r) {
			saved++
		} else {
			discarded++
		}
	}
	return saved, discarded
}

func (s *Service) finishRecording(ctx context.Context, r *Recording) bool {
	defer r.Close()

	blob, err := r.Stop()
	if err != nil || len(blob.Data) == 0 {
		return false
	}

	// Запрос, который завершил звонок, может отмениться раньше загрузки
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordingUploadTimeout)
	defer cancel()
	if _, err := s.UploadRecording(uploadCtx, r.Target, r.UserID, blob); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"target":  r.Target.ID(),
			"user_id": r.UserID,
			"bytes":   len(blob.Data),
		}).Error("Не удалось сохранить запись после завершения звонка")
		return false
	}
	return true
}

// UploadRecording кладёт запись в хранилище и сохраняет метаданные.
func (s *Service) UploadRecording(ctx context.Context, target Target, userID uuid.UUID, blob *Blob) (*CallRecording, error) {
	if !target.Valid() {
		return nil, common.ErrCallNotFound
	}
	if len(blob.Data) == 0 {
		return nil, common.ErrRecordingNotActive
	}
	publicID := fmt.Sprintf("%s_%s_%d", target.ID(), userID, s.now().Unix())
	obj, err := s.uploader.Upload(ctx, bytes.NewReader(blob.Data), storage.KindVideo, "recordings", publicID)
	if err != nil {
		return nil, err
	}

	rec := &CallRecording{
		CallID:          target.CallID,
		GroupCallID:     target.GroupCallID,
		RecordedBy:      userID,
		FileURL:         obj.URL,
		PublicID:        obj.PublicID,
		DurationSeconds: int(blob.Duration.Seconds()),
		FileSizeBytes:   int64(len(blob.Data)),
	}
	if err := s.repo.InsertRecording(ctx, rec); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"recording_id": rec.ID,
		"target":       target.ID(),
		"user_id":      userID,
		"bytes":        rec.FileSizeBytes,
	}).Info("Запись звонка сохранена")
	return rec, nil
}

// Recordings: записи звонка для участника.
func (s *Service) Recordings(ctx context.Context, target Target, userID uuid.UUID) ([]*CallRecording, error) {
	if !target.Valid() {
		return nil, common.ErrCallNotFound
	}
	if target.CallID != nil {
		c, err := s.repo.Get(ctx, *target.CallID)
		if err != nil {
			return nil, err
		}
		if !c.IsParticipant(userID) {
			return nil, common.ErrNotParticipant
		}
	} else {
		g, err := s.repo.GetGroupCall(ctx, *target.GroupCallID)
		if err != nil {
			return nil, err
		}
		if err := s.requireMember(ctx, g.ConversationID, userID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListRecordings(ctx, target)
}
