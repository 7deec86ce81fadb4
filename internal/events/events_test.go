package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, TopicUsers, Event{Type: UserRegistered, SubjectID: "u1"}))
	require.NoError(t, r.Publish(ctx, TopicUsers, Event{Type: UserLoggedIn, SubjectID: "u1"}))
	require.NoError(t, r.Publish(ctx, TopicTasks, Event{Type: TaskCreated, SubjectID: "t1"}))

	assert.Equal(t, []string{UserRegistered, UserLoggedIn}, r.Types(TopicUsers))
	assert.Equal(t, []string{TaskCreated}, r.Types(TopicTasks))
	assert.Empty(t, r.Types("other"))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), TopicTasks, Event{Type: TaskDeleted}))
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_UnreachableBrokerFails(t *testing.T) {
	p := NewKafkaPublisher([]string{"127.0.0.1:1"})
	p.timeout = 200 * time.Millisecond
	defer p.Close()

	err := p.Publish(context.Background(), TopicUsers, Event{Type: UserRegistered, SubjectID: "u1"})
	assert.Error(t, err)
}
