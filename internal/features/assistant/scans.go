package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/economy"
	"serotonyl.ru/green-earth/internal/features/ledger"
	"serotonyl.ru/green-earth/internal/features/limits"
	"serotonyl.ru/green-earth/internal/storage"
)

// Limiter: дневная квота сканов.
type Limiter interface {
	RemainingToday(ctx context.Context, userID uuid.UUID, kind limits.Kind) (int, error)
	TryConsume(ctx context.Context, q postgres.Querier, userID uuid.UUID, kind limits.Kind) (int, error)
}

// Crediter начисляет награду внутри транзакции скана.
type Crediter interface {
	CreditTx(ctx context.Context, q postgres.Querier, req economy.CreditRequest) (*economy.Credited, error)
}

// ScanResult: ответ на скан.
type ScanResult struct {
	Scan           *Scan           `json:"scan"`
	Classification *Classification `json:"classification"`
	PointsAwarded  int64           `json:"points_awarded"`
	Balance        int64           `json:"balance"`
	ScansToday     int             `json:"scans_today"`
}

// ScanService распознаёт мусор и начисляет награду за скан.
type ScanService struct {
	repo       *Repository
	classifier Classifier
	limits     Limiter
	credits    Crediter
	uploader   storage.Uploader
}

// NewScanService создаёт сервис сканов.
func NewScanService(repo *Repository, classifier Classifier, limiter Limiter, credits Crediter, uploader storage.Uploader) *ScanService {
	return &ScanService{repo: repo, classifier: classifier, limits: limiter, credits: credits, uploader: uploader}
}

// Scan распознаёт фото и начисляет награду.
//  1. квота проверяется до обращения к модели
//  2. фото кладётся в хранилище, если оно настроено, ошибка загрузки скан не прерывает
//  3. ошибка модели возвращается как есть, квота не тратится
//  4. списание квоты, запись скана и награда идут одной транзакцией
func (s *ScanService) Scan(ctx context.Context, userID uuid.UUID, req ClassifyRequest) (*ScanResult, error) {
	req.ImageBase64 = stripDataURL(req.ImageBase64)
	if req.ImageBase64 == "" && req.ImageURL == "" {
		return nil, common.ErrImageRequired
	}

	left, err := s.limits.RemainingToday(ctx, userID, limits.KindScans)
	if err != nil {
		return nil, err
	}
	if left <= 0 {
		return nil, common.ErrDailyLimitReached
	}

	imageURL := s.storeImage(ctx, userID, &req)

	cls, err := s.classifier.Classify(ctx, req)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Ошибка распознавания мусора")
		return nil, err
	}

	res := &ScanResult{Classification: cls}
	err = postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		var err error
		res.ScansToday, err = s.limits.TryConsume(ctx, tx, userID, limits.KindScans)
		if err != nil {
			return err
		}

		scan := &Scan{
			UserID:        userID,
			ImageURL:      imageURL,
			WasteType:     cls.WasteType,
			Material:      cls.Material,
			Recyclable:    cls.Recyclable,
			BinColor:      cls.BinColor,
			Confidence:    cls.Confidence,
			Tips:          strings.TrimSpace(cls.Disposal + "\n" + cls.Reuse),
			PointsAwarded: ledger.Reward(ledger.ActionWasteScan),
		}
		if err := s.repo.InsertScan(ctx, tx, scan); err != nil {
			return err
		}
		ref := scan.ID
		credited, err := s.credits.CreditTx(ctx, tx, economy.CreditRequest{
			UserID:      userID,
			Amount:      scan.PointsAwarded,
			Type:        economy.TxScanReward,
			ReferenceID: &ref,
			Description: fmt.Sprintf("Скан: %s", cls.WasteType),
		})
		if err != nil {
			return err
		}
		res.Scan = scan
		res.PointsAwarded = scan.PointsAwarded
		res.Balance = credited.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// storeImage загружает фото из base64. Возвращает ссылку или nil.
// После удачной загрузки модель получает ссылку вместо тяжёлого base64.
func (s *ScanService) storeImage(ctx context.Context, userID uuid.UUID, req *ClassifyRequest) *string {
	if req.ImageBase64 == "" {
		if req.ImageURL != "" {
			u := req.ImageURL
			return &u
		}
		return nil
	}
	if _, disabled := s.uploader.(storage.Disabled); disabled {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil
	}
	obj, err := s.uploader.Upload(ctx, bytes.NewReader(data), storage.KindImage, "scans", fmt.Sprintf("%s_%s", userID, uuid.NewString()))
	if err != nil {
		if !errors.Is(err, common.ErrStorageDisabled) {
			log.WithError(err).WithField("user_id", userID).Warn("Не удалось сохранить фото скана")
		}
		return nil
	}
	req.ImageURL = obj.URL
	req.ImageBase64 = ""
	return &obj.URL
}

// stripDataURL убирает префикс data:image/...;base64, если клиент прислал data URL.
func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// History: последние сканы пользователя.
func (s *ScanService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Scan, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListScans(ctx, userID, limit)
}
