package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/jobs"
	_ "github.com/castellan/castellan/testing"
)

type stubGraphRepo struct {
	rbac.Repository
	grants []rbac.RoleGrant
}

func (s *stubGraphRepo) RoleGrants(ctx context.Context) ([]rbac.RoleGrant, error) {
	return s.grants, nil
}

func TestMatrixWarmupRebuildsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := rbac.NewFactCache(client, time.Minute, nil)
	repo := &stubGraphRepo{grants: []rbac.RoleGrant{
		{RoleName: "member", PrincipalType: rbac.PrincipalUser, PermissionName: "widgets.view"},
	}}
	builder := rbac.NewMatrixBuilder(repo, cache, nil)
	job := jobs.NewMatrixWarmupJob(builder, nil)

	task, err := jobs.NewMatrixWarmupTask("deploy")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, mr.Exists("rbac:permission-matrix"))
}

func TestMatrixWarmupBadPayloadNotRetried(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := rbac.NewFactCache(client, time.Minute, nil)
	builder := rbac.NewMatrixBuilder(&stubGraphRepo{}, cache, nil)
	job := jobs.NewMatrixWarmupJob(builder, nil)

	task := asynq.NewTask(jobs.TaskMatrixWarmup, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
