package app

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
	"chat_core_service/pkg/database"
	"chat_core_service/pkg/logger"
	testtool "chat_core_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// **測試用的容器**
var pgContainer testcontainers.Container
var testDB *gorm.DB

// stubIdentity 整合測試不跑 member service, 所有 user id 都視為有效
type stubIdentity struct{}

func (stubIdentity) Exists(context.Context, string) (bool, error)   { return true, nil }
func (stubIdentity) IsActive(context.Context, string) (bool, error) { return true, nil }
func (stubIdentity) DisplayName(_ context.Context, userID string) (string, error) {
	return userID, nil
}

// **TestMain 初始化測試環境**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "chat_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	})
	if err != nil {
		// 沒有 docker 時只跑單元測試
		fmt.Printf("⚠️ PostgreSQL container unavailable, skipping integration tests: %v\n", err)
		os.Exit(m.Run())
	}
	pgContainer = container
	fmt.Printf("✅ PostgreSQL running at %s:%s\n", host, port)

	testDB, err = database.NewGormConnection(database.Connection{
		ConnectStr: fmt.Sprintf("postgres://test:test@%s:%s/chat_test", host, port),
		RetryCount: 5, RetryInterval: 2,
	})
	if err != nil {
		fmt.Printf("❌ Failed to open gorm connection: %v\n", err)
		_ = pgContainer.Terminate(ctx)
		os.Exit(1)
	}
	if err := repository.NewGormStore(testDB).AutoMigrate(); err != nil {
		fmt.Printf("❌ Failed to migrate chat tables: %v\n", err)
		_ = pgContainer.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()
	_ = pgContainer.Terminate(ctx)
	os.Exit(code)
}

func newIntegrationUsecases(t *testing.T) (*ConversationUseCase, *MessageUseCase, *ReadTrackerUseCase) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not available")
	}
	store := repository.NewGormStore(testDB)
	repos := store.Repos()
	groupUC := NewGroupUseCase(repos, store, stubIdentity{}, repository.NopNotifier{})
	convUC := NewConversationUseCase(repos, store, stubIdentity{}, repository.NopNotifier{}, groupUC)
	msgUC := NewMessageUseCase(repos, stubIdentity{}, repository.NopNotifier{})
	readUC := NewReadTrackerUseCase(repos, store)
	return convUC, msgUC, readUC
}

// private 請求流程走到底: pending → reject → reopen → 對向請求 → accepted
func TestIntegration_PrivateRequestLifecycle(t *testing.T) {
	convUC, _, _ := newIntegrationUsecases(t)
	ctx := context.Background()
	userA := fmt.Sprintf("lc-a-%d", time.Now().UnixNano())
	userB := fmt.Sprintf("lc-b-%d", time.Now().UnixNano())

	view, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationPending, view.Conversation.Status)

	// 同一個 pair 再叫一次, 還是同一間
	again, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, view.Conversation.ID, again.Conversation.ID)

	require.NoError(t, convUC.Reject(ctx, view.Conversation.ID, userB))

	// reopen 後 createdBy 換成 B
	reopened, err := convUC.CreatePrivate(ctx, userB, userA)
	require.NoError(t, err)
	assert.Equal(t, view.Conversation.ID, reopened.Conversation.ID)
	assert.Equal(t, domain.ConversationPending, reopened.Conversation.Status)
	assert.Equal(t, userB, reopened.Conversation.CreatedBy)

	// A 也發請求 → 雙方同意
	accepted, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, view.Conversation.ID, accepted.Conversation.ID)
	assert.Equal(t, domain.ConversationAccepted, accepted.Conversation.Status)
}

// 已讀統計整條路: 3 則未讀 → 整會話標完 → 歸零, receipt 重複寫入不變
func TestIntegration_ReadTracking(t *testing.T) {
	convUC, msgUC, readUC := newIntegrationUsecases(t)
	ctx := context.Background()
	userA := fmt.Sprintf("rt-a-%d", time.Now().UnixNano())
	userB := fmt.Sprintf("rt-b-%d", time.Now().UnixNano())

	view, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	require.NoError(t, convUC.Accept(ctx, view.Conversation.ID, userB))

	var lastMsg *domain.MessageView
	for i := 0; i < 3; i++ {
		lastMsg, err = msgUC.Send(ctx, userA, view.Conversation.ID, fmt.Sprintf("message %d", i+1), SendOptions{})
		require.NoError(t, err)
	}

	// 作者不欠 receipt
	unreadA, err := readUC.UnreadCount(ctx, view.Conversation.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unreadA)

	unreadB, err := readUC.UnreadCount(ctx, view.Conversation.ID, userB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unreadB)

	result, err := readUC.MarkConversationRead(ctx, view.Conversation.ID, userB, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NewlyMarked)
	assert.Equal(t, 0, result.AlreadyRead)

	unreadB, err = readUC.UnreadCount(ctx, view.Conversation.ID, userB)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unreadB)

	// 再標一次, ON CONFLICT DO NOTHING 擋掉重複
	result, err = readUC.MarkConversationRead(ctx, view.Conversation.ID, userB, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewlyMarked)
	assert.Equal(t, 3, result.AlreadyRead)

	// receipt row 是唯一真相, repository 層直接驗證
	repos := repository.NewGormStore(testDB).Repos()
	read, err := repos.Receipt.Exists(ctx, lastMsg.Message.ID, userB)
	require.NoError(t, err)
	assert.True(t, read)
	read, err = repos.Receipt.Exists(ctx, lastMsg.Message.ID, userA)
	require.NoError(t, err)
	assert.False(t, read) // 作者不欠自己 receipt

	// 1對1 裡對方讀完, 訊息升級成 read
	reloaded, err := repos.Message.FindByID(ctx, lastMsg.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, reloaded.Status)

	readers, err := readUC.ReadersOf(ctx, lastMsg.Message.ID)
	require.NoError(t, err)
	require.Len(t, readers, 1)
	assert.Equal(t, userB, readers[0].UserID)
}

// 封存只藏自己的列表, include_archived 找得回來, 重開房自動解封存
func TestIntegration_ArchiveRoundTrip(t *testing.T) {
	convUC, msgUC, _ := newIntegrationUsecases(t)
	ctx := context.Background()
	userA := fmt.Sprintf("ar-a-%d", time.Now().UnixNano())
	userB := fmt.Sprintf("ar-b-%d", time.Now().UnixNano())

	view, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	require.NoError(t, convUC.Accept(ctx, view.Conversation.ID, userB))

	require.NoError(t, convUC.DeleteForUser(ctx, view.Conversation.ID, userA))

	// 預設列表看不到
	listed, err := convUC.ListForUser(ctx, userA, domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	// include_archived 看得到
	listed, err = convUC.ListForUser(ctx, userA, domain.ListOptions{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, view.Conversation.ID, listed[0].Conversation.ID)

	// 對方的列表不受影響, 訊息也照送
	listed, err = convUC.ListForUser(ctx, userB, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	_, err = msgUC.Send(ctx, userB, view.Conversation.ID, "still here", SendOptions{})
	require.NoError(t, err)

	// 同一對 user 重開房 → 同一間, 而且解封存
	again, err := convUC.CreatePrivate(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, view.Conversation.ID, again.Conversation.ID)

	listed, err = convUC.ListForUser(ctx, userA, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// pair key 從頭到尾只對到這一筆
	repos := repository.NewGormStore(testDB).Repos()
	row, err := repos.Conversation.FindPrivateByPairKey(ctx, domain.PairKeyFor(userA, userB))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, view.Conversation.ID, row.ID)
}

// 群組 owner 離開, 資料庫層也只會留下一個 owner
func TestIntegration_GroupOwnershipTransfer(t *testing.T) {
	convUC, _, _ := newIntegrationUsecases(t)
	ctx := context.Background()
	owner := fmt.Sprintf("gr-o-%d", time.Now().UnixNano())
	memberB := fmt.Sprintf("gr-b-%d", time.Now().UnixNano())
	memberC := fmt.Sprintf("gr-c-%d", time.Now().UnixNano())

	store := repository.NewGormStore(testDB)
	repos := store.Repos()
	groupUC := NewGroupUseCase(repos, store, stubIdentity{}, repository.NopNotifier{})

	view, err := convUC.CreateGroup(ctx, owner, "lifeboat", "", []string{memberB, memberC})
	require.NoError(t, err)

	require.NoError(t, groupUC.Leave(ctx, view.Conversation.ID, owner))

	members, err := repos.Membership.ActiveMembers(ctx, view.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	owners := 0
	for _, m := range members {
		if m.Role == domain.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}
