// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package kubernetes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	testclient "k8s.io/client-go/kubernetes/fake"

	"github.com/tochemey/shardmesh/discovery"
)

const portName = "mesh"

func TestDiscovery(t *testing.T) {
	namespace := "test"
	podLabels := map[string]string{
		"app.kubernetes.io/part-of": "shardmesh",
		"app.kubernetes.io/name":    "accounts",
	}

	t.Run("With ID assertion", func(t *testing.T) {
		assert.Equal(t, discovery.ProviderKubernetes, NewDiscovery(&Config{}).ID())
	})
	t.Run("With DiscoverPeers", func(t *testing.T) {
		pods := []runtime.Object{
			newPod("pod1", namespace, podLabels, corev1.PodRunning, "10.0.0.23", corev1.ConditionTrue),
			newPod("pod2", namespace, podLabels, corev1.PodRunning, "10.0.0.24", corev1.ConditionTrue),
			// not ready
			newPod("pod3", namespace, podLabels, corev1.PodRunning, "10.0.0.25", corev1.ConditionFalse),
			// pending
			newPod("pod4", namespace, podLabels, corev1.PodPending, "10.0.0.26", corev1.ConditionTrue),
			// other application
			newPod("pod5", namespace, map[string]string{"app.kubernetes.io/name": "billing"}, corev1.PodRunning, "10.0.0.27", corev1.ConditionTrue),
			// other namespace
			newPod("pod6", "other", podLabels, corev1.PodRunning, "10.0.0.28", corev1.ConditionTrue),
		}

		provider := NewDiscovery(&Config{
			Namespace: namespace,
			PodLabels: podLabels,
			PortName:  portName,
		}, WithClient(testclient.NewSimpleClientset(pods...)))

		require.NoError(t, provider.Initialize())
		require.NoError(t, provider.Register())

		actual, err := provider.DiscoverPeers()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.23:3379", "10.0.0.24:3379"}, actual)

		members, err := provider.DiscoverMembers()
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, discovery.Member{
			ID:       "pod1",
			Endpoint: "10.0.0.23:3379",
			Meta:     map[string]string{MetaNamespace: namespace, MetaHost: "worker-1"},
		}, members[0])
		assert.Equal(t, "pod2", members[1].ID)

		require.NoError(t, provider.Deregister())
		require.NoError(t, provider.Close())
	})
	t.Run("With lifecycle errors", func(t *testing.T) {
		provider := NewDiscovery(&Config{
			Namespace: namespace,
			PodLabels: podLabels,
			PortName:  portName,
		}, WithClient(testclient.NewSimpleClientset()))

		_, err := provider.DiscoverPeers()
		require.ErrorIs(t, err, discovery.ErrNotInitialized)
		require.ErrorIs(t, provider.Register(), discovery.ErrNotInitialized)

		require.NoError(t, provider.Initialize())
		require.ErrorIs(t, provider.Initialize(), discovery.ErrAlreadyInitialized)
		require.ErrorIs(t, provider.Deregister(), discovery.ErrNotRegistered)
		require.NoError(t, provider.Register())
		require.ErrorIs(t, provider.Register(), discovery.ErrAlreadyRegistered)

		peers, err := provider.DiscoverPeers()
		require.NoError(t, err)
		assert.Empty(t, peers)
	})
	t.Run("With invalid config", func(t *testing.T) {
		require.Error(t, NewDiscovery(&Config{Namespace: namespace, PortName: portName}).Initialize())
		require.Error(t, NewDiscovery(&Config{PodLabels: podLabels, PortName: portName}).Initialize())
	})
	t.Run("Without an in-cluster config", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "")
		provider := NewDiscovery(&Config{Namespace: namespace, PodLabels: podLabels, PortName: portName})
		require.Error(t, provider.Initialize())
	})
}

func newPod(name, namespace string, podLabels map[string]string, phase corev1.PodPhase, ip string, ready corev1.ConditionStatus) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    podLabels,
		},
		Spec: corev1.PodSpec{
			NodeName: "worker-1",
			Containers: []corev1.Container{
				{
					Ports: []corev1.ContainerPort{
						{Name: portName, ContainerPort: 3379},
						{Name: "metrics", ContainerPort: 9102},
					},
				},
			},
		},
		Status: corev1.PodStatus{
			Phase: phase,
			PodIP: ip,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: ready},
			},
			StartTime: &metav1.Time{Time: time.Now()},
		},
	}
}
