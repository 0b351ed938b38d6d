package bot

const (
	textAdminHeader    = "🔧 Admin commands:"
	textBroadcastUsage = "Usage: /broadcast <text>"
	textBroadcastDone  = "📢 Broadcast finished: %d sent, %d failed (%d users)."
	textStats          = "📊 Statistics:\n\n👥 Users: %d\n🍳 Recipes: %d"
	textNoCode         = "The onboarding code is not configured."
	textDeepLink       = "🔗 Onboarding link:\n%s"
)
