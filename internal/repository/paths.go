package repository

import "strings"

// Root trees of the store layout.
const (
	AgentsRoot         = "agents"
	ChatbotsRoot       = "chatbots"
	ThreadsRoot        = "threads"
	UserThreadsRoot    = "userThreads"
	ChatbotThreadsRoot = "chatbotThreads"
	UserAdminsRoot     = "userAdmins"
)

// Join builds a store path from segments.
func Join(segments ...string) string {
	return cleanPath(strings.Join(segments, "/"))
}

func AgentsPath(ownerID string) string           { return Join(AgentsRoot, ownerID) }
func AgentPath(ownerID, agentID string) string   { return Join(AgentsRoot, ownerID, agentID) }
func ChatbotPath(chatbotID string) string        { return Join(ChatbotsRoot, chatbotID) }
func ThreadPath(threadID string) string          { return Join(ThreadsRoot, threadID) }
func MessagesPath(threadID string) string        { return Join(ThreadsRoot, threadID, "messages") }
func UserThreadsPath(userID string) string       { return Join(UserThreadsRoot, userID) }
func ChatbotThreadsPath(chatbotID string) string { return Join(ChatbotThreadsRoot, chatbotID) }

func MessagePath(threadID, messageID string) string {
	return Join(ThreadsRoot, threadID, "messages", messageID)
}

func UserThreadPath(userID, threadID string) string {
	return Join(UserThreadsRoot, userID, threadID)
}

func ChatbotThreadPath(chatbotID, threadID string) string {
	return Join(ChatbotThreadsRoot, chatbotID, threadID)
}

func UserAdminPath(userID, adminID string) string {
	return Join(UserAdminsRoot, userID, adminID)
}

// cleanPath trims and collapses slashes. The root path is "".
func cleanPath(p string) string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "/" + key
}

// ancestors returns the proper ancestors of p, nearest to the root first.
func ancestors(p string) []string {
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/"))
	}
	return out
}

// inSubtree reports whether p equals root or lies below it.
func inSubtree(root, p string) bool {
	if root == "" || p == root {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// related reports whether a change at changed is visible from a subscription at watched.
func related(watched, changed string) bool {
	return inSubtree(watched, changed) || inSubtree(changed, watched)
}

// subtreeBounds returns the half-open key range holding the descendants of p.
// '0' is the byte after '/', so [p+"/", p+"0") is exactly the descendant set.
func subtreeBounds(p string) (string, string) {
	return p + "/", p + "0"
}
