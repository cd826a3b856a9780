package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"family-taxi/internal/models"
	"family-taxi/internal/repository"
	"family-taxi/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// UserService - регистрация, вход, профиль, координаты и администрирование пользователей
type UserService struct {
	users    *repository.UserRepository
	trips    *repository.TripRepository
	jwt      *utils.JWTManager
	revoker  TokenRevoker
	notifier Notifier
	log      *slog.Logger
	cost     int
}

func NewUserService(users *repository.UserRepository, trips *repository.TripRepository, jwt *utils.JWTManager, revoker TokenRevoker, notifier Notifier, log *slog.Logger) *UserService {
	if revoker == nil {
		revoker = nopRevoker{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &UserService{
		users:    users,
		trips:    trips,
		jwt:      jwt,
		revoker:  revoker,
		notifier: notifier,
		log:      log,
		cost:     bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Username string
	Password string
	FullName string
	Email    string
	Phone    string
	Role     models.Role
}

type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register регистрирует пассажира. Водителей и администраторов создаёт только администратор.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Role = models.RolePassenger
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: неверное имя пользователя или пароль", ErrNotAuthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: неверное имя пользователя или пароль", ErrNotAuthenticated)
	}
	s.log.Info("пользователь вошёл", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// Logout отзывает токен до истечения его срока действия
func (s *UserService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	return s.revoker.Revoke(ctx, jti, expiresAt)
}

func (s *UserService) Me(ctx context.Context, p models.Principal) (*models.User, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	return s.get(ctx, p.UserID)
}

func (s *UserService) GetUser(ctx context.Context, p models.Principal, id uint) (*models.User, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// UpdateLocation сохраняет координаты пользователя. Если у водителя есть активная
// поездка, пассажир получает его новое положение.
func (s *UserService) UpdateLocation(ctx context.Context, p models.Principal, lat, lng float64) (*models.User, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLocation(ctx, p.UserID, lat, lng); err != nil {
		return nil, fromRepo(err, "пользователь", p.UserID)
	}

	if p.Role == models.RoleDriver {
		active, err := s.trips.FindActiveByDriver(ctx, p.UserID)
		switch {
		case err == nil:
			s.notifier.NotifyDriverLocation(active.PassengerID, active.ID, lat, lng)
		case !errors.Is(err, repository.ErrNotFound):
			s.log.Warn("не удалось получить активную поездку водителя", "driver_id", p.UserID, "error", err)
		}
	}
	return s.get(ctx, p.UserID)
}

func (s *UserService) SetOnline(ctx context.Context, p models.Principal, online bool) (*models.User, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	if err := s.users.SetOnline(ctx, p.UserID, online); err != nil {
		return nil, fromRepo(err, "пользователь", p.UserID)
	}
	s.log.Info("статус водителя изменён", "driver_id", p.UserID, "is_online", online)
	return s.get(ctx, p.UserID)
}

func (s *UserService) UpdatePhoto(ctx context.Context, p models.Principal, url string) (*models.User, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfilePicture(ctx, p.UserID, url); err != nil {
		return nil, fromRepo(err, "пользователь", p.UserID)
	}
	return s.get(ctx, p.UserID)
}

func (s *UserService) ListUsers(ctx context.Context, p models.Principal) ([]models.User, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	return users, nil
}

// CreateUser - администратор создаёт пользователя с любой ролью
func (s *UserService) CreateUser(ctx context.Context, p models.Principal, in RegisterInput) (*models.User, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: неизвестная роль %q", ErrValidation, in.Role)
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("администратор создал пользователя", "admin_id", p.UserID, "user_id", user.ID, "role", user.Role)
	return user, nil
}

// DeleteUser удаляет пользователя. Администраторов удалить нельзя, в том числе себя.
func (s *UserService) DeleteUser(ctx context.Context, p models.Principal, id uint) error {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return err
	}
	if id == p.UserID {
		return fmt.Errorf("%w: нельзя удалить собственную учётную запись", ErrPreconditionFailed)
	}
	target, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == models.RoleAdmin {
		return fmt.Errorf("%w: нельзя удалить администратора", ErrNotAuthorized)
	}
	if err := s.users.Delete(ctx, id, time.Now().UTC()); err != nil {
		return fromRepo(err, "пользователь", id)
	}
	s.log.Info("пользователь удалён", "admin_id", p.UserID, "user_id", id, "role", target.Role)
	return nil
}

// EnsureAdmin создаёт администратора по умолчанию, если его ещё нет
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("ошибка поиска администратора: %w", err)
	}
	user, err := s.create(ctx, RegisterInput{Username: username, Password: password, FullName: "Administrator", Role: models.RoleAdmin})
	if err != nil {
		return err
	}
	s.log.Info("создан администратор по умолчанию", "user_id", user.ID, "username", username)
	return nil
}

func (s *UserService) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if len(in.Username) < 3 {
		return nil, fmt.Errorf("%w: имя пользователя должно быть не короче 3 символов", ErrValidation)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: пароль должен быть не короче 6 символов", ErrValidation)
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: имя пользователя уже занято", ErrValidation)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	user := &models.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Rating:       models.DefaultUserRating,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fromRepo(err, "пользователь", 0)
	}
	return user, nil
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, _, err := s.jwt.Generate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *UserService) get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "пользователь", id)
	}
	return user, nil
}
